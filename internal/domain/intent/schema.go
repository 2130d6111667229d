package intent

// DefaultSchemas returns the required-slot schema for every action a
// stock deployment understands. A deployment with a different External
// Adapters registry (component O) passes its own map to NewParser
// instead, built from that registry's own action descriptors.
func DefaultSchemas() map[string]ActionSchema {
	required := func(names ...string) map[string]ParamSpec {
		m := make(map[string]ParamSpec, len(names))
		for _, n := range names {
			m[n] = ParamSpec{Required: true}
		}
		return m
	}

	return map[string]ActionSchema{
		"search_buses":      {Service: "travel", Params: required("origin", "destination", "travel_date")},
		"search_hotels":     {Service: "travel", Params: required("location", "check_in_date", "check_out_date")},
		"search_flights":    {Service: "travel", Params: required("origin", "destination", "departure_date")},
		"search_transfers":  {Service: "travel", Params: required("origin", "destination", "travel_date")},
		"search_events":     {Service: "travel", Params: required("location")},
		"create_itinerary":  {Service: "travel", Params: required("destination", "start_date", "end_date")},
		"add_to_itinerary":  {Service: "travel", Params: required("itinerary_id", "item_type", "item_id")},
		"send_email":        {Service: "email", Params: required("to", "text")},
		"send_whatsapp":     {Service: "whatsapp", Params: required("phone_number", "message")},
		"set_reminder":      {Service: "reminders", Params: required("content", "time")},
		"get_weather":       {Service: "weather", Params: required("location")},
		"convert_currency": {Service: "currency", Params: withTypes(
			required("amount", "from_currency", "to_currency"),
			map[string]string{"amount": "number"},
		)},
		"book_travel_item": {Service: "travel", Params: withTypes(
			required("item_type", "item_id"),
			map[string]string{"item_id": "integer"},
		)},
	}
}

// withTypes overlays a param-name -> type map onto an already-built
// required-params map, for the handful of actions whose parameters the
// Plan Verifier needs to coerce from numeric-looking strings.
func withTypes(params map[string]ParamSpec, types map[string]string) map[string]ParamSpec {
	for name, t := range types {
		spec := params[name]
		spec.Type = t
		params[name] = spec
	}
	return params
}
