package entity

type CampaignStatus string

const (
	CampaignDraft         CampaignStatus = "draft"
	CampaignQueued        CampaignStatus = "queued"
	CampaignProcessing    CampaignStatus = "processing"
	CampaignSending       CampaignStatus = "sending"
	CampaignSent          CampaignStatus = "sent"
	CampaignPartialFailed CampaignStatus = "partial_failed"
	CampaignFailed        CampaignStatus = "failed"
)

type DeliveryStatus string

const (
	DeliveryQueued DeliveryStatus = "queued"
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

const FailReasonTTLExpired = "TTL_EXPIRED"
