package bibdb

var (
	StdID          = stdID
	StripIDWrapper = stripIDWrapper
)
