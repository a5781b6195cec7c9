package tgCallback

// Callback buttons uniques
const (
	RefreshPositions string = "refresh_positions"
	ShowSummary      string = "show_summary"
	ShowPositions    string = "show_positions"
)
