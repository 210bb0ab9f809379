package config

import "testing"

func TestReplaceFromPreservesIdentityAndBumpsVersion(t *testing.T) {
	c := Default()
	original := c
	startVersion := c.Version

	next := Default()
	next.Model.Name = "gpt-4o"
	next.Tailscale.Hostname = "agentrun"

	c.ReplaceFrom(next)

	if c != original {
		t.Fatal("ReplaceFrom must mutate in place, not swap the pointer")
	}
	if c.Model.Name != "gpt-4o" {
		t.Errorf("Model.Name = %q, want gpt-4o", c.Model.Name)
	}
	if c.Tailscale.Hostname != "agentrun" {
		t.Errorf("Tailscale.Hostname = %q, want agentrun", c.Tailscale.Hostname)
	}
	if c.Version != startVersion+1 {
		t.Errorf("Version = %d, want %d", c.Version, startVersion+1)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	c := Default()
	snap := c.Snapshot()

	c.ReplaceFrom(&Config{Model: ModelConfig{Name: "changed"}})

	if snap.Model.Name == "changed" {
		t.Fatal("Snapshot() must not observe a later ReplaceFrom")
	}
}
