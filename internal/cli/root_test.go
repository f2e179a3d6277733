package cli

import "testing"

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"probe"},
		{"failures"},
		{"deadletters", "list"},
		{"deadletters", "replay"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		if err != nil || len(rest) != 0 {
			t.Errorf("command %v not registered: %v", path, err)
			continue
		}
		if cmd.Run == nil {
			t.Errorf("command %v has no Run", path)
		}
	}

	if f := rootCmd.PersistentFlags().Lookup("config"); f == nil || f.DefValue != "config.yaml" {
		t.Error("expected --config flag defaulting to config.yaml")
	}
}
