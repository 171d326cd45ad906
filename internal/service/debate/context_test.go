package debate

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	model "github.com/zhouzirui/debate-arena/backend/internal/model/debate"
)

func testConfig(autoFinish bool) model.Config {
	return model.Config{
		Topic:        "memory safety in systems languages",
		RoundLimit:   3,
		AutoFinish:   autoFinish,
		Participants: testParticipants(),
	}
}

func contentMsg(author, content string, kind model.MessageKind) model.Message {
	return model.Message{ID: author + "-" + content, ParticipantID: author, Content: content, Kind: kind}
}

func TestBuildContextMergesAdjacentSameRole(t *testing.T) {
	cfg := testConfig(false)
	transcript := []model.Message{
		contentMsg("mod", "opening", model.KindSummary),
		contentMsg("a", "first point", model.KindText),
	}

	// From Bob's perspective both entries resolve to role "user" and must
	// collapse into one block.
	blocks, _ := BuildContext(cfg, transcript, cfg.Participants[2])
	if len(blocks) != 1 {
		t.Fatalf("expected 1 merged block, got %d", len(blocks))
	}
	if blocks[0].Role != "user" {
		t.Fatalf("expected role user, got %s", blocks[0].Role)
	}
	if !strings.Contains(blocks[0].Content, "[Chair] opening") || !strings.Contains(blocks[0].Content, "[Alice] first point") {
		t.Fatalf("merged block lost attribution: %q", blocks[0].Content)
	}
}

func TestBuildContextNeverEmitsAdjacentSameRole(t *testing.T) {
	cfg := testConfig(false)
	var transcript []model.Message
	authors := []string{"mod", "a", "b", "a", "mod", model.InterventionAuthor, "b", "b", "mod"}
	for i, author := range authors {
		kind := model.KindText
		if author == "mod" {
			kind = model.KindSummary
		}
		if author == model.InterventionAuthor {
			kind = model.KindIntervention
		}
		transcript = append(transcript, contentMsg(author, fmt.Sprintf("entry %d", i), kind))
	}

	for _, speaker := range cfg.Participants {
		blocks, _ := BuildContext(cfg, transcript, speaker)
		for i := 1; i < len(blocks); i++ {
			if blocks[i].Role == blocks[i-1].Role {
				t.Fatalf("speaker %s: adjacent blocks %d and %d share role %s", speaker.ID, i-1, i, blocks[i].Role)
			}
		}
	}
}

func TestBuildContextWindowKeepsMostRecent(t *testing.T) {
	cfg := testConfig(false)
	var transcript []model.Message
	for i := 0; i < 30; i++ {
		author := cfg.Participants[i%3].ID
		kind := model.KindText
		if author == "mod" {
			kind = model.KindSummary
		}
		transcript = append(transcript, contentMsg(author, fmt.Sprintf("entry %d", i), kind))
	}

	blocks, _ := BuildContext(cfg, transcript, cfg.Participants[1])
	if len(blocks) > 10 {
		t.Fatalf("expected at most 10 blocks, got %d", len(blocks))
	}
	last := blocks[len(blocks)-1]
	if !strings.Contains(last.Content, "entry 29") {
		t.Fatalf("window dropped the most recent entry: %q", last.Content)
	}
	for _, b := range blocks {
		if strings.Contains(b.Content, "entry 0") {
			t.Fatal("window kept the oldest entry")
		}
	}
}

func TestBuildContextPrependsOpenerBeforeAssistantFirst(t *testing.T) {
	cfg := testConfig(false)
	transcript := []model.Message{
		contentMsg("a", "my own earlier turn", model.KindText),
	}

	blocks, _ := BuildContext(cfg, transcript, cfg.Participants[1])
	if len(blocks) != 2 {
		t.Fatalf("expected synthetic opener plus one block, got %d", len(blocks))
	}
	if blocks[0].Role != "user" {
		t.Fatalf("first block must not be assistant, got %s", blocks[0].Role)
	}
	if !strings.Contains(blocks[0].Content, cfg.Topic) {
		t.Fatalf("opener should announce the topic: %q", blocks[0].Content)
	}
	if blocks[1].Role != "assistant" {
		t.Fatalf("speaker's own turn should stay assistant, got %s", blocks[1].Role)
	}
}

func TestBuildContextInterventionStaysOnUserRole(t *testing.T) {
	cfg := testConfig(false)
	transcript := []model.Message{
		contentMsg("mod", "opening", model.KindSummary),
		contentMsg(model.InterventionAuthor, "focus on embedded targets", model.KindIntervention),
	}

	blocks, _ := BuildContext(cfg, transcript, cfg.Participants[1])
	for _, b := range blocks {
		if b.Role == "system" {
			t.Fatal("interventions must never use the system role")
		}
	}
	joined := blocks[len(blocks)-1].Content
	if !strings.Contains(joined, "[OPERATOR DIRECTIVE]") || !strings.Contains(joined, "focus on embedded targets") {
		t.Fatalf("intervention not wrapped as a directive: %q", joined)
	}
}

func TestBuildContextIsIdempotent(t *testing.T) {
	cfg := testConfig(true)
	transcript := []model.Message{
		contentMsg("mod", "opening", model.KindSummary),
		contentMsg("a", "first point", model.KindText),
		contentMsg("b", "counterpoint", model.KindText),
	}

	blocks1, system1 := BuildContext(cfg, transcript, cfg.Participants[0])
	blocks2, system2 := BuildContext(cfg, transcript, cfg.Participants[0])

	if !reflect.DeepEqual(blocks1, blocks2) {
		t.Fatal("block output differs across identical invocations")
	}
	if system1 != system2 {
		t.Fatal("system instruction differs across identical invocations")
	}
}

func TestSystemInstructionRoleRules(t *testing.T) {
	cfg := testConfig(true)

	// Moderator with autoFinish gets the consensus token instruction.
	_, system := BuildContext(cfg, nil, cfg.Participants[0])
	if !strings.Contains(system, consensusMarker) {
		t.Fatal("moderator instruction missing the consensus token when autoFinish is on")
	}
	if !strings.Contains(system, "open the session") {
		t.Fatal("moderator should be told to open an empty session")
	}
	if !strings.Contains(system, cfg.Topic) {
		t.Fatal("system instruction missing the topic")
	}

	// Without autoFinish the moderator never learns the token.
	cfgOff := testConfig(false)
	_, system = BuildContext(cfgOff, nil, cfgOff.Participants[0])
	if strings.Contains(system, consensusMarker) {
		t.Fatal("moderator instruction mentions the consensus token with autoFinish off")
	}

	// Non-moderators are always forbidden from emitting the token.
	_, system = BuildContext(cfg, nil, cfg.Participants[1])
	if !strings.Contains(system, "never output the token "+consensusMarker) {
		t.Fatal("participant instruction missing the token prohibition")
	}
}
