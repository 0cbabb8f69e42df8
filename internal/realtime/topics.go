package realtime

import "strings"

const (
	topicPrefix = "sessions."
	topicSuffix = ".lifecycle"
)

// SessionLifecycleTopic returns the topic that carries lifecycle events
// for a single session.
func SessionLifecycleTopic(sessionID string) string {
	return topicPrefix + sessionID + topicSuffix
}

// ParseSessionTopic extracts the session ID from a lifecycle topic. It
// reports false for topics of any other shape.
func ParseSessionTopic(topic string) (string, bool) {
	if !strings.HasPrefix(topic, topicPrefix) || !strings.HasSuffix(topic, topicSuffix) {
		return "", false
	}
	id := topic[len(topicPrefix) : len(topic)-len(topicSuffix)]
	if id == "" || strings.Contains(id, ".") {
		return "", false
	}
	return id, true
}

func IsSupportedTopic(topic string) bool {
	_, ok := ParseSessionTopic(topic)
	return ok
}
