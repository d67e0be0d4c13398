package mqtt

// statusTopicPrefix is the root for hub presence topics.
const statusTopicPrefix = "homehub"

// StatusTopic returns the retained presence topic for a client, e.g.
// "homehub/homehub-livingroom/status". It carries online on connect,
// offline on graceful shutdown, and the last-will offline on a crash.
func StatusTopic(clientID string) string {
	return statusTopicPrefix + "/" + clientID + "/status"
}
