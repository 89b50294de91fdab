// Package discord bridges a Discord voice channel to relayvox's audio
// abstractions using github.com/bwmarrin/discordgo and layeh.com/gopus.
//
// [Join] connects to a voice channel once; the returned [Conn] then serves
// as both an [audio.Input] (everyone speaking in the channel, decoded and
// downmixed to mono) and an [audio.Output] (synthesized speech encoded to
// Opus and sent into the channel).
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/relayvox/pkg/audio"
)

var (
	_ audio.Input  = (*Conn)(nil)
	_ audio.Output = (*Conn)(nil)
)

// Option configures a [Conn].
type Option func(*Conn)

// WithSampleRate sets the rate of frames delivered by sources. Default 16000.
func WithSampleRate(rate int) Option {
	return func(c *Conn) { c.sampleRate = rate }
}

// WithSpeakerFilter restricts capture to a single SSRC. Zero (the default)
// captures every speaker.
func WithSpeakerFilter(ssrc uint32) Option {
	return func(c *Conn) { c.filterSSRC = ssrc }
}

// Conn is an active voice channel connection.
//
// Conn is safe for concurrent use.
type Conn struct {
	vc         *discordgo.VoiceConnection
	sampleRate int
	filterSSRC uint32

	srcMu sync.Mutex
	src   *audio.Queue // the currently attached capture queue, if any

	out *sender

	done      chan struct{}
	closeOnce sync.Once

	// disconnectVC tears down the voice connection. Defaults to
	// vc.Disconnect; overridden in tests.
	disconnectVC func() error
}

// Join connects to the voice channel identified by channelID in guildID.
// ctx governs only the connection attempt.
func Join(ctx context.Context, session *discordgo.Session, guildID, channelID string, opts ...Option) (*Conn, error) {
	if session == nil {
		return nil, errors.New("discord: session must not be nil")
	}
	if guildID == "" || channelID == "" {
		return nil, errors.New("discord: guild and channel IDs must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// mute=false (we send audio), deaf=false (we receive audio).
	vc, err := session.ChannelVoiceJoin(guildID, channelID, false, false)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}
	c, err := newConn(vc, opts...)
	if err != nil {
		_ = vc.Disconnect()
		return nil, err
	}
	c.disconnectVC = vc.Disconnect
	return c, nil
}

func newConn(vc *discordgo.VoiceConnection, opts ...Option) (*Conn, error) {
	c := &Conn{
		vc:         vc,
		sampleRate: 16000,
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	out, err := newSender(vc, c.done)
	if err != nil {
		return nil, err
	}
	c.out = out
	go c.recvLoop()
	go c.out.loop()
	return c, nil
}

// Open implements [audio.Input]. Only one source is attached at a time;
// opening a new one closes the previous one.
func (c *Conn) Open(context.Context) (audio.Source, error) {
	select {
	case <-c.done:
		return nil, audio.ErrClosed
	default:
	}
	q := audio.NewQueue()
	c.srcMu.Lock()
	prev := c.src
	c.src = q
	c.srcMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	q.OnClose = func() {
		c.srcMu.Lock()
		if c.src == q {
			c.src = nil
		}
		c.srcMu.Unlock()
	}
	return q, nil
}

// Output returns c as an [audio.Output]. Conn implements both directions but
// Go does not allow two Open methods on one type.
func (c *Conn) Output() audio.Output {
	return audio.OutputFunc(func(context.Context) (audio.Sink, error) {
		select {
		case <-c.done:
			return nil, audio.ErrClosed
		default:
		}
		return c.out, nil
	})
}

// Close leaves the voice channel and stops background goroutines. It is safe
// to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.srcMu.Lock()
		src := c.src
		c.src = nil
		c.srcMu.Unlock()
		if src != nil {
			_ = src.Close()
		}
		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
	})
	return err
}

// recvLoop decodes Opus packets and pushes mono frames to the attached
// source.
func (c *Conn) recvLoop() {
	decoders := newSpeakerDecoders(c.sampleRate)
	for {
		select {
		case <-c.done:
			return
		case pkt, ok := <-c.vc.OpusRecv:
			if !ok {
				return
			}
			if pkt == nil {
				continue
			}
			if c.filterSSRC != 0 && pkt.SSRC != c.filterSSRC {
				continue
			}

			mono, err := decoders.decode(pkt.SSRC, pkt.Opus)
			if err != nil {
				slog.Warn("discord: dropping voice packet", "ssrc", pkt.SSRC, "error", err)
				continue
			}

			c.srcMu.Lock()
			q := c.src
			c.srcMu.Unlock()
			if q == nil {
				continue
			}
			q.Push(mono)
		}
	}
}
