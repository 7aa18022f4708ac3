package redis

import "fmt"

const ns = "rtc:v1"

func KeyCourtDay(courtID int64, date string) string {
	return fmt.Sprintf("%s:court:%d:day:%s", ns, courtID, date)
}

func KeyReservation(code string) string {
	return fmt.Sprintf("%s:reservation:%s", ns, code)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelSlotsChanged() string {
	return ns + ":slots:changed"
}
