package schedule

import "time"

// payWindowDays is fixed: income arrives biweekly.
const payWindowDays = 14

// PayWindow returns the 14-day pay window [start, end] that contains today,
// based on a known biweekly anchor payday. The window always starts on a
// payday and spans start..start+13 inclusive. Floor division keeps the math
// correct when today precedes the anchor.
func PayWindow(anchor, today time.Time) (start, end time.Time) {
	anchor, today = Normalize(anchor), Normalize(today)

	days := int(today.Sub(anchor).Hours() / 24)
	k := days / payWindowDays
	if days < 0 && days%payWindowDays != 0 {
		k--
	}
	start = anchor.AddDate(0, 0, k*payWindowDays)
	end = start.AddDate(0, 0, payWindowDays-1)
	return start, end
}
