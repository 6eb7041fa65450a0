package activity

// ServiceStats is the request-reply service returning room counters.
const ServiceStats = "stats"

// StatsRequest is the request for room counters. An empty Room returns every room.
type StatsRequest struct {
	Room string `json:"room,omitempty"`
}

// StatsResponse is the response for room counters.
type StatsResponse struct {
	Rooms []RoomStats `json:"rooms"`
}
