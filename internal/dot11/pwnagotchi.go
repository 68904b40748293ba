package dot11

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/gopacket/layers"
)

// pwnagotchi units split their JSON advertisement across consecutive
// elements with this id.
const elementIDPwnagotchi layers.Dot11InformationElementID = 222

// Advertisement is the self-description a pwnagotchi broadcasts in its beacons.
type Advertisement struct {
	Identity  string  `json:"identity"`
	Name      string  `json:"name"`
	Version   string  `json:"version"`
	Uptime    float64 `json:"uptime"`
	PwndRun   int     `json:"pwnd_run"`
	PwndTotal int     `json:"pwnd_tot"`
}

// ExtractAdvertisement reassembles and decodes the advertisement, if any.
// A payload that does not decode or carries no identity is treated as absent.
func ExtractAdvertisement(tp TaggedParameters) (Advertisement, bool) {
	parts := tp.All(elementIDPwnagotchi)
	if len(parts) == 0 {
		return Advertisement{}, false
	}
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p.Body...)
	}
	var adv Advertisement
	if err := json.Unmarshal(buf, &adv); err != nil {
		return Advertisement{}, false
	}
	if strings.TrimSpace(adv.Identity) == "" {
		return Advertisement{}, false
	}
	return adv, true
}
