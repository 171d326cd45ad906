package debate

import (
	"fmt"
	"strings"

	model "github.com/zhouzirui/debate-arena/backend/internal/model/debate"
	"github.com/zhouzirui/debate-arena/backend/internal/service/provider"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"

	// contextWindow bounds how many merged blocks are sent per request.
	// Truncation always keeps the most recent blocks.
	contextWindow = 10

	// blockSeparator joins adjacent entries that collapse into one block.
	blockSeparator = "\n\n"

	// consensusMarker is the out-of-band control token the moderator may
	// append to declare consensus termination. The coordinator strips it
	// before storing the message.
	consensusMarker = "[CONSENSUS_REACHED]"
)

// BuildContext assembles the provider-ready message blocks and the system
// instruction for one turn by the given speaker. The result is
// deterministic: the same transcript and speaker always produce identical
// output.
//
// Entries authored by the speaker map to role "assistant"; everything else
// becomes "user", prefixed with the author's display name so attribution
// survives the role flattening. Interventions stay on role "user" (many
// providers reject mid-conversation system turns) wrapped as an operator
// directive. Adjacent same-role entries merge into a single block, and a
// synthetic opener is prepended when the first block would otherwise carry
// the assistant role, since providers require a non-assistant opening
// message.
func BuildContext(cfg model.Config, transcript []model.Message, speaker model.Participant) ([]provider.ChatMessage, string) {
	names := make(map[string]string, len(cfg.Participants))
	for _, p := range cfg.Participants {
		names[p.ID] = p.Name
	}

	blocks := make([]provider.ChatMessage, 0, len(transcript))
	for _, msg := range transcript {
		role, content := resolveEntry(msg, speaker, names)
		if n := len(blocks); n > 0 && blocks[n-1].Role == role {
			blocks[n-1].Content += blockSeparator + content
			continue
		}
		blocks = append(blocks, provider.ChatMessage{Role: role, Content: content})
	}

	if len(blocks) > 0 && blocks[0].Role == roleAssistant {
		opener := provider.ChatMessage{
			Role:    roleUser,
			Content: fmt.Sprintf("The debate session on %q is now open.", cfg.Topic),
		}
		blocks = append([]provider.ChatMessage{opener}, blocks...)
	}

	if len(blocks) > contextWindow {
		blocks = blocks[len(blocks)-contextWindow:]
	}

	return blocks, systemInstruction(cfg, speaker, len(chatHistory(transcript)) == 0)
}

func resolveEntry(msg model.Message, speaker model.Participant, names map[string]string) (string, string) {
	if msg.Kind == model.KindIntervention {
		content := fmt.Sprintf("[OPERATOR DIRECTIVE] %s\nTreat this as a binding instruction for the rest of the debate.", msg.Content)
		return roleUser, content
	}

	if msg.ParticipantID == speaker.ID {
		return roleAssistant, msg.Content
	}

	name := names[msg.ParticipantID]
	if name == "" {
		name = msg.ParticipantID
	}
	return roleUser, fmt.Sprintf("[%s] %s", name, msg.Content)
}

// systemInstruction combines the speaker's identity and role text, the
// topic, the fixed style constraints and the role-specific rules.
func systemInstruction(cfg model.Config, speaker model.Participant, opening bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a participant in a moderated multi-party debate.\n", speaker.Name)
	if instr := strings.TrimSpace(speaker.Instructions); instr != "" {
		fmt.Fprintf(&b, "Your role: %s\n", instr)
	}
	fmt.Fprintf(&b, "Debate topic: %s\n\n", cfg.Topic)

	b.WriteString("Style rules: keep every reply under 150 words. Never open with filler phrases such as \"That's a great point\". Write in a direct, terse, technical register.")

	if speaker.Role == model.RoleModerator {
		b.WriteString("\n\nYou are the moderator. Steer the discussion, keep speakers on topic and draw out disagreement.")
		if opening {
			b.WriteString(" No turns have occurred yet: open the session by framing the topic and inviting the first statement.")
		}
		if cfg.AutoFinish {
			fmt.Fprintf(&b, "\nWhen the participants have reached genuine, detailed technical consensus, and only then, you may end your reply with the exact token %s to close the debate. Never do this in an early round; allow at least a few rounds of substantive discussion first.", consensusMarker)
		}
	} else {
		fmt.Fprintf(&b, "\n\nStay strictly within your own expertise and argue from it. You must never output the token %s.", consensusMarker)
	}

	return b.String()
}
