package domain

import "time"

type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

type Chat struct {
	ID                string
	Name              string
	Type              ChatType
	Participants      []UserRef
	LastMessageText   string
	LastMessageSender string
	LastMessageTime   time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DisplayName resolves the name shown for this chat. Direct chats have no
// stored name; it is derived from the other participant.
func (c *Chat) DisplayName(viewerID string) string {
	if c.Name != "" {
		return c.Name
	}
	for _, p := range c.Participants {
		if p.ID != viewerID {
			return p.Name
		}
	}
	return c.ID
}

func NewDirectChat(id string, participants []UserRef) *Chat {
	return &Chat{
		ID:           id,
		Type:         ChatTypeDirect,
		Participants: participants,
	}
}

func NewGroupChat(id, name string, participants []UserRef) *Chat {
	return &Chat{
		ID:           id,
		Name:         name,
		Type:         ChatTypeGroup,
		Participants: participants,
	}
}
