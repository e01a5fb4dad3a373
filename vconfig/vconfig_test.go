package vconfig

import "testing"

func TestCheckAppliesDefaults(t *testing.T) {
	var c Config
	if err := c.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if c.Listen != ":2400" {
		t.Errorf("Listen = %q", c.Listen)
	}
	if c.SessionSlots != 64 {
		t.Errorf("SessionSlots = %d", c.SessionSlots)
	}
	if c.PortLow != 40000 || c.PortHigh != 41024 {
		t.Errorf("port range = [%d, %d)", c.PortLow, c.PortHigh)
	}
}

func TestCheckRejectsBadPortRange(t *testing.T) {
	c := Config{PortLow: 5000, PortHigh: 4000}
	if err := c.Check(); err == nil {
		t.Error("Check: want error for PortHigh <= PortLow")
	}
}

func TestCheckPreservesExplicitValues(t *testing.T) {
	c := Config{SessionSlots: 8, Listen: ":9000"}
	if err := c.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if c.SessionSlots != 8 || c.Listen != ":9000" {
		t.Errorf("explicit values overwritten: %+v", c)
	}
}
