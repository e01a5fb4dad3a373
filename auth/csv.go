package auth

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/gocarina/gocsv"
)

// csvRecord is one row of the account file, tagged for gocsv the same
// way m-lab-tcp-info's csvtool tags its Snapshot rows for Marshal.
type csvRecord struct {
	Username string `csv:"username"`
	Secret   string `csv:"secret"`
	UserID   uint32 `csv:"user_id"`
	AvatarID uint32 `csv:"avatar_id"`
}

// ErrNoMatch is returned when no account row matches the offered
// credentials.
var ErrNoMatch = errors.New("auth: no matching account")

// CSV is a Checker backed by a flat account file, reloaded from disk on
// every Check call so an operator can edit it live.
type CSV struct {
	Path string

	mu sync.Mutex
}

// NewCSV returns a CSV-backed Checker reading accounts from path.
func NewCSV(path string) *CSV {
	return &CSV{Path: path}
}

func (c *CSV) Check(ctx context.Context, username, secret string) (Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.Path)
	if err != nil {
		return Identity{}, err
	}
	defer f.Close()

	var records []*csvRecord
	if err := gocsv.Unmarshal(f, &records); err != nil {
		return Identity{}, err
	}

	for _, r := range records {
		if r.Username == username && r.Secret == secret {
			return Identity{UserID: r.UserID, AvatarID: r.AvatarID}, nil
		}
	}
	return Identity{}, ErrNoMatch
}
