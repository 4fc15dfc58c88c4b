package telephony

import (
	"encoding/xml"
	"maps"
	"slices"
)

type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Connect twimlConnect `xml:"Connect"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter,omitempty"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConnectStream returns the TwiML document instructing Twilio to open a
// bidirectional Media Stream to streamURL. Parameters are delivered back in
// the start event's customParameters.
func ConnectStream(streamURL string, params map[string]string) ([]byte, error) {
	doc := twimlResponse{Connect: twimlConnect{Stream: twimlStream{URL: streamURL}}}
	for _, name := range slices.Sorted(maps.Keys(params)) {
		doc.Connect.Stream.Parameters = append(doc.Connect.Stream.Parameters, twimlParameter{Name: name, Value: params[name]})
	}
	b, err := xml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), b...), nil
}
