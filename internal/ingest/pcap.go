package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"airguard/internal/config"
	"airguard/internal/dot11"
)

// CaptureFromPacket extracts a management frame and its radio metadata from
// a radiotap packet. Non-management frames, unsupported subtypes and frames
// failing the FCS check are skipped.
func CaptureFromPacket(pkt gopacket.Packet, tap string) (dot11.Capture, bool) {
	rtLayer := pkt.Layer(layers.LayerTypeRadioTap)
	dLayer := pkt.Layer(layers.LayerTypeDot11)
	if rtLayer == nil || dLayer == nil {
		return dot11.Capture{}, false
	}
	rt := rtLayer.(*layers.RadioTap)
	d := dLayer.(*layers.Dot11)
	if rt.Flags.BadFCS() {
		return dot11.Capture{}, false
	}
	ft, ok := dot11.FrameTypeFromDot11(d.Type)
	if !ok {
		return dot11.Capture{}, false
	}

	payload := make([]byte, 0, len(d.Contents)+len(d.Payload))
	payload = append(payload, d.Contents...)
	payload = append(payload, d.Payload...)

	meta := dot11.Meta{
		Frequency:    int(rt.ChannelFrequency),
		MACTimestamp: rt.TSFT,
		WEP:          rt.Flags.WEP(),
	}
	if rt.Present.DBMAntennaSignal() {
		meta.AntennaSignal = int(rt.DBMAntennaSignal)
	}
	return dot11.Capture{
		Type:       ft,
		Payload:    payload,
		Header:     append([]byte(nil), rt.Contents...),
		Meta:       meta,
		Tap:        tap,
		ReceivedAt: pkt.Metadata().Timestamp.UTC(),
	}, true
}

type PcapStats struct {
	Packets  int
	Captures int
}

// ReadPcap walks a radiotap capture and calls fn for every management frame.
func ReadPcap(ctx context.Context, r io.Reader, tap string, fn func(dot11.Capture) bool) (PcapStats, error) {
	var stats PcapStats
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return stats, err
	}
	if lt := reader.LinkType(); lt != layers.LinkTypeIEEE80211Radio {
		return stats, fmt.Errorf("unsupported link type %s", lt)
	}
	src := gopacket.NewPacketSource(reader, reader.LinkType())
	src.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}
	for {
		pkt, err := src.NextPacket()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Packets++
		c, ok := CaptureFromPacket(pkt, tap)
		if !ok {
			continue
		}
		stats.Captures++
		if !fn(c) {
			return stats, ctx.Err()
		}
	}
}

// StartPcap replays the configured capture files into the pipeline, one
// after the other.
func StartPcap(ctx context.Context, cfg *config.Manager, out chan<- dot11.Capture, logger *slog.Logger) {
	current := cfg.Get().Ingest.Pcap
	if !current.Enabled {
		if logger != nil {
			logger.Info("pcap ingest disabled")
		}
		return
	}
	go func() {
		for _, path := range current.Files {
			stats, err := replayFile(ctx, path, current.Tap, out)
			if err != nil && ctx.Err() == nil {
				if logger != nil {
					logger.Error("pcap replay failed", "file", path, "err", err)
				}
				continue
			}
			if logger != nil {
				logger.Info("pcap replay complete", "file", path, "packets", stats.Packets, "captures", stats.Captures)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
}

func replayFile(ctx context.Context, path, tap string, out chan<- dot11.Capture) (PcapStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return PcapStats{}, err
	}
	defer f.Close()
	return ReadPcap(ctx, f, tap, func(c dot11.Capture) bool {
		return Send(ctx, out, c, "pcap")
	})
}
