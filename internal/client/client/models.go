package client

import "time"

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Pic      string `json:"pic"`
	Verified bool   `json:"verified"`
}

type Chat struct {
	ID            string    `json:"id"`
	ChatName      string    `json:"chatName"`
	IsGroupChat   bool      `json:"isGroupChat"`
	Users         []User    `json:"users"`
	GroupAdmin    *User     `json:"groupAdmin,omitempty"`
	LatestMessage *Message  `json:"latestMessage,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Message struct {
	ID        string    `json:"id"`
	Sender    User      `json:"sender"`
	Content   string    `json:"content"`
	Chat      *Chat     `json:"chat,omitempty"`
	ReadBy    []User    `json:"readBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reply is the generic {"isSuccess","message"} body.
type Reply struct {
	IsSuccess  bool   `json:"isSuccess"`
	Message    string `json:"message"`
	Kind       string `json:"kind,omitempty"`
	Token      string `json:"token,omitempty"`
	ResetToken string `json:"resetToken,omitempty"`
}

// Upload is a presigned avatar upload.
type Upload struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	PublicURL string    `json:"pic"`
	ExpiresAt time.Time `json:"expiresAt"`
}
