package discord

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"

	"github.com/MrWong99/relayvox/pkg/audio"
)

var _ audio.Sink = (*sender)(nil)

// samplesPerPacket is one 20 ms stereo Opus frame, interleaved.
const samplesPerPacket = opusFrameSize * opusChannels

// sender is the [audio.Sink] for a voice connection. Write converts PCM to
// 48 kHz stereo and queues it; loop encodes and sends 20 ms Opus frames.
type sender struct {
	vc   *discordgo.VoiceConnection
	enc  *gopus.Encoder
	done <-chan struct{}

	mu       sync.Mutex
	buf      []int16
	inFlight bool
	wake     chan struct{}
	idle     *sync.Cond

	// setSpeaking defaults to vc.Speaking; overridden in tests.
	setSpeaking func(bool) error
}

func newSender(vc *discordgo.VoiceConnection, done <-chan struct{}) (*sender, error) {
	enc, err := newOpusEncoder()
	if err != nil {
		return nil, err
	}
	s := &sender{
		vc:          vc,
		enc:         enc,
		done:        done,
		wake:        make(chan struct{}, 1),
		setSpeaking: vc.Speaking,
	}
	s.idle = sync.NewCond(&s.mu)
	return s, nil
}

func (s *sender) Write(_ context.Context, pcm []byte, f audio.Format) error {
	select {
	case <-s.done:
		return audio.ErrClosed
	default:
	}
	mono := audio.PCM16ToFloat32(audio.ToMono16(pcm, f, opusSampleRate))
	stereo := audio.MonoToStereo16(audio.Float32ToInt16(mono))

	s.mu.Lock()
	s.buf = append(s.buf, stereo...)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Drain blocks until every queued frame has been handed to discordgo.
func (s *sender) Drain(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.idle.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) > 0 || s.inFlight {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-s.done:
			return nil
		default:
		}
		s.idle.Wait()
	}
	return nil
}

func (s *sender) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.idle.Broadcast()
	s.mu.Unlock()
}

// Close is a no-op; the connection owns the sender's lifetime.
func (s *sender) Close() error {
	s.Flush()
	return nil
}

func (s *sender) speaking(on bool) {
	if err := s.setSpeaking(on); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", on, "error", err)
	}
}

func (s *sender) loop() {
	defer func() {
		s.mu.Lock()
		s.buf = nil
		s.idle.Broadcast()
		s.mu.Unlock()
	}()

	talking := false
	// Pad a short tail with silence after a quiet period so the last partial
	// frame is not held back forever.
	tail := time.NewTimer(time.Hour)
	defer tail.Stop()

	for {
		s.mu.Lock()
		var frame []int16
		if len(s.buf) >= samplesPerPacket {
			frame = append([]int16(nil), s.buf[:samplesPerPacket]...)
			s.buf = s.buf[samplesPerPacket:]
			s.inFlight = true
		}
		s.mu.Unlock()

		if frame == nil {
			if talking {
				s.speaking(false)
				talking = false
			}
			tail.Reset(2 * opusFrameSizeMs * time.Millisecond)
			select {
			case <-s.done:
				return
			case <-s.wake:
			case <-tail.C:
				s.padTail()
			}
			continue
		}

		if !talking {
			s.speaking(true)
			talking = true
		}
		opus, err := s.enc.Encode(frame, opusFrameSize, opusMaxPacket)
		if err == nil {
			select {
			case s.vc.OpusSend <- opus:
			case <-s.done:
				return
			}
		} else {
			slog.Warn("discord: opus encode error", "error", err)
		}

		s.mu.Lock()
		s.inFlight = false
		s.idle.Broadcast()
		s.mu.Unlock()
	}
}

// padTail extends a partial trailing frame with silence.
func (s *sender) padTail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.buf); n > 0 && n < samplesPerPacket {
		s.buf = append(s.buf, make([]int16, samplesPerPacket-n)...)
	}
}
