package dto

// Meta cloud API webhook envelope, trimmed to the fields the bot consumes.

type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	Id      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Contacts         []WebhookContact `json:"contacts"`
	Messages         []InboundMessage `json:"messages"`
}

type WebhookContact struct {
	WaId    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type InboundMessage struct {
	From        string              `json:"from"`
	Id          string              `json:"id"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"`
	Text        *TextBody           `json:"text,omitempty"`
	Image       *MediaBody          `json:"image,omitempty"`
	Audio       *MediaBody          `json:"audio,omitempty"`
	Video       *MediaBody          `json:"video,omitempty"`
	Document    *MediaBody          `json:"document,omitempty"`
	Interactive *InteractiveContent `json:"interactive,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

type MediaBody struct {
	Id       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
}

type InteractiveContent struct {
	Type        string        `json:"type"`
	ButtonReply *ReplyContent `json:"button_reply,omitempty"`
	ListReply   *ReplyContent `json:"list_reply,omitempty"`
}

type ReplyContent struct {
	Id          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}
