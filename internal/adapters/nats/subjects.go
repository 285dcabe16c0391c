package natsadapter

import (
	"strings"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// Subjects carried on the bus. Presence and ping events are persisted in
// JetStream; frames, paths, cues and evictions are plain core NATS fan-out.
const (
	SubjectPresences   = "pingsphere.presence.>"
	SubjectPings       = "pingsphere.ping.>"
	SubjectFrame       = "pingsphere.scene.frame"
	SubjectPath        = "pingsphere.scene.path"
	SubjectCues        = "pingsphere.cue.>"
	SubjectEvicted     = "pingsphere.evicted"
	subjectPresenceFmt = "pingsphere.presence."
	subjectPingFmt     = "pingsphere.ping."
	subjectCueFmt      = "pingsphere.cue."
)

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// token makes an id safe to use as a single subject token.
func token(id string) string {
	if id == "" {
		return "_"
	}
	return tokenReplacer.Replace(id)
}

// PresenceSubject is the subject a presence event for id is published on.
func PresenceSubject(id string) string { return subjectPresenceFmt + token(id) }

// PingSubject is the subject a ping event for id is published on.
func PingSubject(id string) string { return subjectPingFmt + token(id) }

// CueSubject is the subject transitions into phase are published on.
func CueSubject(phase domain.Phase) string { return subjectCueFmt + phase.String() }
