package guidance

import (
	"fmt"
	"strings"

	"github.com/MrWong99/crawlfree/pkg/types"
)

const (
	// Welcome is spoken once when the application starts listening.
	Welcome = "Welcome to crawl free, we will help you find your belongings around you. " +
		"Just tell us what you are looking for, then move your phone slowly in a circle."

	// PromptSearch is spoken when a search starts.
	PromptSearch = "Please start moving your phone around slowly."

	// PromptNextObject closes the found announcement.
	PromptNextObject = "If you want to find another object, you are ready to do it now."
)

// FoundPhrase tells the user the target is in front of the camera.
func FoundPhrase(label string) string {
	return fmt.Sprintf("Stop moving, I found your %s here, it's in your walking direction.", label)
}

// RelationPhrase describes r. It is empty for an unknown relation.
func RelationPhrase(r types.RelationResult) string {
	switch r.Kind {
	case types.RelationOn:
		return fmt.Sprintf("It's on the %s.", r.Reference)
	case types.RelationBeside:
		return fmt.Sprintf("It's beside the %s.", r.Reference)
	default:
		return ""
	}
}

// UnsupportedPhrase rejects a request for heard.
func UnsupportedPhrase(heard string) string {
	return fmt.Sprintf("Sorry, finding %s is not supported, but you can try finding another one.", heard)
}

// Compose joins the non-empty sentences with single spaces.
func Compose(sentences ...string) string {
	parts := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// FoundAnnouncement is the single announcement made when the target is
// found.
func FoundAnnouncement(label string, r types.RelationResult) string {
	return Compose(FoundPhrase(label), RelationPhrase(r), PromptNextObject)
}
