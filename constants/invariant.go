package constants

const (
	// public URL
	PUBLIC_URL              = "https://netsira.example.com"
	ITEMS_PER_PAGE          = 10
	HOME_SITES_PER_CATEGORY = 4
	MAX_MESSAGE_LENGTH      = 2500
	MAX_DESCRIPTION_LENGTH  = 1000
	MIN_PASSWORD_LENGTH     = 6
	MAX_RATING              = 5
)
