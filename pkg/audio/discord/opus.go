package discord

import (
	"fmt"

	"layeh.com/gopus"

	"github.com/MrWong99/relayvox/pkg/audio"
)

// Discord voice is 48 kHz stereo Opus in 20 ms packets.
const (
	opusSampleRate  = 48000
	opusChannels    = 2
	opusFrameSizeMs = 20
	opusFrameSize   = opusSampleRate * opusFrameSizeMs / 1000 // samples per channel
	opusMaxPacket   = 4000
)

// speakerDecoders decodes incoming packets with one Opus decoder per SSRC,
// since decoder state is per stream. Not safe for concurrent use; only the
// receive loop touches it.
type speakerDecoders struct {
	rate int
	byID map[uint32]*gopus.Decoder
}

func newSpeakerDecoders(rate int) *speakerDecoders {
	return &speakerDecoders{rate: rate, byID: make(map[uint32]*gopus.Decoder)}
}

// decode turns one packet from ssrc into mono float32 samples at the
// configured rate.
func (s *speakerDecoders) decode(ssrc uint32, packet []byte) ([]float32, error) {
	dec, ok := s.byID[ssrc]
	if !ok {
		var err error
		dec, err = gopus.NewDecoder(opusSampleRate, opusChannels)
		if err != nil {
			return nil, fmt.Errorf("discord: create opus decoder for ssrc %d: %w", ssrc, err)
		}
		s.byID[ssrc] = dec
	}
	pcm, err := dec.Decode(packet, opusFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("discord: opus decode ssrc %d: %w", ssrc, err)
	}
	return audio.Resample(audio.DownmixInt16(pcm, opusChannels), opusSampleRate, s.rate), nil
}

// newOpusEncoder returns an encoder for outgoing 20 ms stereo packets.
func newOpusEncoder() (*gopus.Encoder, error) {
	enc, err := gopus.NewEncoder(opusSampleRate, opusChannels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("discord: create opus encoder: %w", err)
	}
	return enc, nil
}
