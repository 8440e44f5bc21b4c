package hook

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

// Intent labels what the assistant's last message is asking of the user.
type Intent string

// The intent table. Adding an intent means adding a constant here, a row in
// intentDetails, and an entry in intentOrder; everything else (prompt text,
// resolution, announcements) derives from those.
const (
	// IntentCompletion: the task is done and the assistant awaits direction.
	IntentCompletion Intent = "completion"
	// IntentFailure: the assistant hit an error and needs help.
	IntentFailure Intent = "failure"
	// IntentAuthorization: the assistant is waiting for approval or a choice.
	IntentAuthorization Intent = "authorization"
)

// DefaultIntent is spoken when classification fails, the transcript has no
// assistant message, or the event is a bare notification.
const DefaultIntent = IntentAuthorization

// maxIntentDistance is the Levenshtein tolerance for sloppy model replies
// ("complettion", "faliure").
const maxIntentDistance = 2

// intentDetail carries the spoken announcement and the description shown to
// the classifier model.
type intentDetail struct {
	announcement string
	description  string
}

// The announcements are wrapped in 『…』 so the pipeline's passthrough reads
// them verbatim instead of routing them through the translator.
var intentDetails = map[Intent]intentDetail{
	IntentCompletion: {
		announcement: "『作業が完了しました。次の指示をお待ちしています。』",
		description:  "the task is finished and the assistant is waiting for the next instruction",
	},
	IntentFailure: {
		announcement: "『エラーが発生しました。確認をお願いします。』",
		description:  "the task failed or hit an error and the assistant needs the user's help",
	},
	IntentAuthorization: {
		announcement: "『承認をお待ちしています。』",
		description:  "work is in progress and the assistant is waiting for approval or a choice",
	},
}

// intentOrder fixes the numbering used in the classification prompt and the
// precedence when a reply matches several intents.
var intentOrder = []Intent{IntentCompletion, IntentFailure, IntentAuthorization}

// String returns the wire name of the intent.
func (i Intent) String() string { return string(i) }

// Announcement returns the pre-translated phrase spoken for the intent.
// Unknown intents fall back to the default's announcement.
func (i Intent) Announcement() string {
	if d, ok := intentDetails[i]; ok {
		return d.announcement
	}
	return intentDetails[DefaultIntent].announcement
}

// BuildClassificationPrompt renders the instruction given to the model for
// classifying message. The model is told to answer with exactly one intent
// name; ResolveIntent forgives it when it doesn't quite manage that.
func BuildClassificationPrompt(message string) string {
	var b strings.Builder
	b.WriteString("Classify the intent of the following AI assistant message into exactly one category:\n\n")
	for n, intent := range intentOrder {
		fmt.Fprintf(&b, "%d. %s - %s\n", n+1, intent, intentDetails[intent].description)
	}
	b.WriteString("\nMessage:\n")
	b.WriteString(message)
	b.WriteString("\n\nAnswer with a single word, one of: ")
	names := make([]string, len(intentOrder))
	for n, intent := range intentOrder {
		names[n] = string(intent)
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(". Do not output anything else.")
	return b.String()
}

// ResolveIntent maps a raw model reply onto a known Intent. Matching is
// case-insensitive and proceeds from exact through small-edit-distance to
// substring; anything still unrecognised resolves to DefaultIntent.
func ResolveIntent(reply string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(reply))
	normalized = strings.Trim(normalized, ".!?:\"'`「」『』()")
	if normalized == "" {
		return DefaultIntent
	}

	for _, intent := range intentOrder {
		if normalized == string(intent) {
			return intent
		}
	}
	for _, intent := range intentOrder {
		if matchr.Levenshtein(normalized, string(intent)) <= maxIntentDistance {
			return intent
		}
	}
	// Verbose models wrap the answer in a sentence; accept it anywhere in the
	// reply.
	for _, intent := range intentOrder {
		if strings.Contains(normalized, string(intent)) {
			return intent
		}
	}
	return DefaultIntent
}
