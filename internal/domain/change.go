package domain

// ChangeTopic names a collection whose writes are broadcast to live queries.
type ChangeTopic string

// Change topics.
const (
	TopicIncidents     ChangeTopic = "incidents"
	TopicMessages      ChangeTopic = "messages"
	TopicNotifications ChangeTopic = "notifications"
	TopicCategories    ChangeTopic = "categories"
	TopicUsers         ChangeTopic = "users"
	TopicAll           ChangeTopic = "*"
)

// Change is a committed write signal. Key scopes it within the topic
// (incident id for incidents and messages, recipient id for notifications,
// category or user id otherwise). An empty Key touches the whole topic.
type Change struct {
	Topic ChangeTopic `json:"topic"`
	Key   string      `json:"key"`
}
