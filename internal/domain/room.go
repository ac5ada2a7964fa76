package domain

type RoomName string

const MaxRoomNameLen = 36

type Room struct {
	Name RoomName
}

// NormalizeRoomName trims over-long names and maps an empty name to "main".
func NormalizeRoomName(raw string) RoomName {
	if raw == "" {
		return "main"
	}
	if len(raw) > MaxRoomNameLen {
		raw = raw[:MaxRoomNameLen]
	}
	return RoomName(raw)
}
