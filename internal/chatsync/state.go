package chatsync

const (
	FragmentSessionIdentity = "session-identity"
	FragmentSessionToken    = "session-token"
	FragmentWorkspace       = "workspace"
	FragmentChannelList     = "channel-list"
	FragmentMessageMap      = "message-map"
	FragmentUserMap         = "user-map"
)

func AllFragments() []string {
	return []string{
		FragmentSessionIdentity,
		FragmentSessionToken,
		FragmentWorkspace,
		FragmentChannelList,
		FragmentMessageMap,
		FragmentUserMap,
	}
}

const (
	ChannelTypeGroup  = "group"
	ChannelTypeDirect = "direct"
)

type Identity struct {
	ID            int64  `json:"id"`
	FullName      string `json:"fullname,omitempty"`
	Email         string `json:"email,omitempty"`
	WorkspaceID   int64  `json:"wsId"`
	WorkspaceName string `json:"wsName"`
}

type Workspace struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullname"`
	Email    string `json:"email,omitempty"`
}

// Recipient is attached on read for direct channels; it is never part of
// the persisted channel list.
type Channel struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Members   []int64 `json:"members,omitempty"`
	Recipient *User   `json:"recipient,omitempty"`
}

type Message struct {
	ID         int64  `json:"id"`
	ChannelID  int64  `json:"channelId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

type SignUpRequest struct {
	Email        string `json:"email"`
	FullName     string `json:"fullname"`
	Password     string `json:"password"`
	WorkspaceRef string `json:"workspace"`
}

type OutgoingMessage struct {
	ChannelID int64  `json:"channelId"`
	Text      string `json:"text"`
}
