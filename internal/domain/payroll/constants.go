package payroll

const (
	DefaultDailyRegularHours  = 8
	DefaultWeeklyRegularHours = 40
	DefaultNightStart         = "22:00"
	DefaultNightEnd           = "06:00"
)
