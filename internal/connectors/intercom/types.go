package intercom

import "github.com/go-playground/validator/v10"

// validate is shared; validator instances are safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// searchRequest is the body of POST /conversations/search.
type searchRequest struct {
	Query      searchQuery      `json:"query"`
	Pagination searchPagination `json:"pagination"`
}

type searchQuery struct {
	Operator string        `json:"operator"`
	Value    []searchField `json:"value"`
}

type searchField struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type searchPagination struct {
	PerPage       int    `json:"per_page"`
	StartingAfter string `json:"starting_after,omitempty"`
}

// conversationList is the search response envelope.
type conversationList struct {
	Type          string                `json:"type"`
	Conversations []conversationSummary `json:"conversations" validate:"dive"`
	TotalCount    int                   `json:"total_count" validate:"gte=0"`
	Pages         *pages                `json:"pages"`
}

type pages struct {
	Page       int       `json:"page"`
	PerPage    int       `json:"per_page"`
	TotalPages int       `json:"total_pages"`
	Next       *nextPage `json:"next"`
}

type nextPage struct {
	Page          int    `json:"page"`
	StartingAfter string `json:"starting_after"`
}

type conversationSummary struct {
	ID        string `json:"id" validate:"required"`
	CreatedAt int64  `json:"created_at" validate:"gte=0"`
	UpdatedAt int64  `json:"updated_at" validate:"gte=0"`
}

// conversation is the GET /conversations/{id} response.
type conversation struct {
	Type              string            `json:"type"`
	ID                string            `json:"id" validate:"required"`
	Title             string            `json:"title"`
	CreatedAt         int64             `json:"created_at" validate:"gte=0"`
	UpdatedAt         int64             `json:"updated_at" validate:"gte=0"`
	Source            *conversationPart `json:"source"`
	Contacts          *contactRefList   `json:"contacts"`
	Teammates         *teammateRefList  `json:"teammates"`
	ConversationParts *partList         `json:"conversation_parts"`
}

type contactRefList struct {
	Contacts []participantRef `json:"contacts" validate:"dive"`
}

type teammateRefList struct {
	Teammates []participantRef `json:"teammates" validate:"dive"`
}

type participantRef struct {
	Type string `json:"type"`
	ID   string `json:"id" validate:"required"`
}

type partList struct {
	ConversationParts []conversationPart `json:"conversation_parts" validate:"dive"`
	TotalCount        int                `json:"total_count"`
}

// conversationPart is a message; the conversation source uses the same shape.
type conversationPart struct {
	ID        string `json:"id"`
	PartType  string `json:"part_type"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"created_at" validate:"gte=0"`
	Author    author `json:"author"`
}

type author struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// contact is the GET /contacts/{id} response.
type contact struct {
	Type  string `json:"type"`
	ID    string `json:"id" validate:"required"`
	Role  string `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// admin is the GET /admins/{id} response.
type admin struct {
	Type  string `json:"type"`
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// errorList is the error envelope returned with non-success statuses.
type errorList struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id"`
	Errors    []errorItem `json:"errors"`
}

type errorItem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
