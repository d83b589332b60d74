package canto

import "testing"

func TestValidateCommandEnvelope(t *testing.T) {
	cmd, err := NewCommand("resolve.query", ResolveQueryBody{Phrase: "play something"})
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	if err := ValidateCommandEnvelope(cmd); err == nil {
		t.Fatalf("expected error for missing id/ts/from")
	}

	cmd.ID = "id"
	cmd.TS = 1
	cmd.From = "tester"
	if err := ValidateCommandEnvelope(cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCommandEnvelopeMissingFields(t *testing.T) {
	if err := ValidateCommandEnvelope(CommandEnvelope{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTopics(t *testing.T) {
	if got := TopicCommands(BaseTopic, "n1"); got != "canto/v1/node/n1/cmd" {
		t.Fatalf("unexpected command topic %q", got)
	}
	if got := TopicReply(BaseTopic, "c1"); got != "canto/v1/reply/c1" {
		t.Fatalf("unexpected reply topic %q", got)
	}
}
