package httptransport

type InitAuthorityRequest struct {
	AdminAccount string `json:"admin_account"`
	PublicKey    string `json:"public_key"`
}

type InitAuthorityResponse struct {
	Status        string `json:"status"`
	AdminAccount  string `json:"admin_account"`
	PublicKey     string `json:"public_key"`
	InitializedAt string `json:"initialized_at"`
}

type MintCapabilityRequest struct {
	ContentDigest string  `json:"content_digest"` // base64
	ContentUID    string  `json:"content_uid,omitempty"`
	Price         uint64  `json:"price"`
	RoyaltyBps    *uint32 `json:"royalty_bps,omitempty"`
	Recipient     string  `json:"recipient"`
	ExpiresAt     int64   `json:"expires_at"`
	Signature     string  `json:"signature"` // base64
}

type CapabilityDTO struct {
	OwnerAccount  string  `json:"owner_account"`
	ContentDigest string  `json:"content_digest"`
	ContentUID    string  `json:"content_uid,omitempty"`
	Price         uint64  `json:"price"`
	RoyaltyBps    *uint32 `json:"royalty_bps,omitempty"`
	ExpiresAt     string  `json:"expires_at"`
	MintedAt      string  `json:"minted_at"`
}

type MintCapabilityResponse struct {
	Status string        `json:"status"`
	Data   CapabilityDTO `json:"data"`
}

type GetCapabilityResponse struct {
	Status string        `json:"status"`
	Data   CapabilityDTO `json:"data"`
}

type PublishPaperRequest struct {
	Authors     []string `json:"authors"`
	CitedPapers []string `json:"cited_papers,omitempty"`
}

type PaperDTO struct {
	PaperID       string   `json:"paper_id"`
	ContentDigest string   `json:"content_digest"`
	ContentUID    string   `json:"content_uid,omitempty"`
	Authors       []string `json:"authors"`
	Price         uint64   `json:"price"`
	RoyaltyBps    *uint32  `json:"royalty_bps,omitempty"`
	CitedPapers   []string `json:"cited_papers,omitempty"`
	PublishedAt   string   `json:"published_at"`
}

type PublishPaperResponse struct {
	Status string   `json:"status"`
	Data   PaperDTO `json:"data"`
}

type GetPaperResponse struct {
	Status string   `json:"status"`
	Data   PaperDTO `json:"data"`
}

type ListPapersRequest struct {
	Author string `json:"author,omitempty"`
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type ListPapersResponse struct {
	Status     string     `json:"status"`
	Items      []PaperDTO `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
