package media

type AssetType string

const (
	// AssetTypeStaging holds freshly ingested images awaiting verification.
	// A staged file is owned exclusively by the worker that will process it.
	AssetTypeStaging AssetType = "staging"
	// AssetTypeConfirmed holds images of validated incidents until a report
	// consumes them
	AssetTypeConfirmed AssetType = "confirmed"
	// AssetTypeReport holds generated PDF reports
	AssetTypeReport AssetType = "report"
)
