package ws

// Endpoint builds push endpoint URLs from a configured base URL. It's the
// transport-layer implementation of csm.EndpointBuilder, keeping the CSM
// itself free of HTTP concerns.
type Endpoint struct {
	BaseURL string
}

// BuildEndpoint renders "<base>/wpush/v1/<uaid>/<channelID>".
func (e Endpoint) BuildEndpoint(uaid, channelID string) string {
	return e.BaseURL + "/wpush/v1/" + uaid + "/" + channelID
}
