package protocol

// Role is the function a node plays on the link.
type Role uint8

const (
	RoleSensor Role = iota + 1
	RoleGateway
)

func (r Role) String() string {
	switch r {
	case RoleSensor:
		return "sensor"
	case RoleGateway:
		return "gateway"
	default:
		return "unknown"
	}
}

// Route names the handler an inbound frame is delivered to.
type Route uint8

const (
	RouteDrop Route = iota
	RouteTimeRequest
	RouteTimeResponse
	RouteRelay
)

func (r Route) String() string {
	switch r {
	case RouteTimeRequest:
		return "time_request"
	case RouteTimeResponse:
		return "time_response"
	case RouteRelay:
		return "relay"
	default:
		return "drop"
	}
}

// Rules parameterise Classify for the local node.
type Rules struct {
	Role    Role
	Framing Framing
	// Sensor is the only peer whose readings the gateway relays.
	Sensor Addr
}

// Classify routes an inbound frame. It depends only on the frame bytes, the
// sender and the rules.
//
// Time requests and responses are routed regardless of sender. Readings,
// presence and status frames are relayed only by the gateway and only when
// they come from the configured sensor.
//
// Legacy frames are classified by length first and sender second. The time
// value size only means a time response on the sensor role, so an 8-byte
// NodeStatus sent to the gateway is relayed while the sensor would take it for
// a time response.
func Classify(frame []byte, sender Addr, r Rules) Route {
	if len(frame) == 0 {
		return RouteDrop
	}

	if r.Framing == FramingLegacy {
		switch {
		case len(frame) == TimeRequestSize:
			return RouteTimeRequest
		case len(frame) == TimeResponseSize && r.Role == RoleSensor:
			return RouteTimeResponse
		}
		if r.Role == RoleGateway && sender == r.Sensor {
			return RouteRelay
		}
		return RouteDrop
	}

	switch (Codec{Framing: FramingTagged}).TypeOf(frame, TypeUnknown) {
	case TypeTimeRequest:
		return RouteTimeRequest
	case TypeTimeResponse:
		return RouteTimeResponse
	case TypeDataBatch, TypePresence, TypeNodeStatus:
		if r.Role == RoleGateway && sender == r.Sensor {
			return RouteRelay
		}
	}
	return RouteDrop
}
