package response

type Error struct {
	Error string `json:"error"`
}

type Campaign struct {
	CampaignID string `json:"campaign_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	TotalCount int    `json:"total_count"`
	CreatedAt  string `json:"created_at,omitempty"`
}
