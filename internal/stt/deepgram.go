package stt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/kmch/dictation-gateway/internal/config"
	"github.com/kmch/dictation-gateway/internal/observability"
	"github.com/kmch/dictation-gateway/internal/resilience"
)

// messageCallbackHandler implements the LiveMessageCallback interface.
// It embeds the default handler and overrides only the methods we need.
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	onMessage func(*msginterfaces.MessageResponse)
	onError   func(*msginterfaces.ErrorResponse) error
	onClose   func()
}

// Message overrides the default handler to forward transcription results
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.onMessage(message)
	return nil
}

// Error overrides the default handler to use our custom error handling
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if m.onError != nil {
		return m.onError(errorResponse)
	}
	return m.DefaultCallbackHandler.Error(errorResponse)
}

// Close overrides the default handler so Close waiters can observe the
// upstream connection shutting down after Finish
func (m *messageCallbackHandler) Close(closeResponse *msginterfaces.CloseResponse) error {
	if m.onClose != nil {
		m.onClose()
	}
	return nil
}

// DeepgramTranscriber implements LiveTranscriber using Deepgram's streaming API.
// One instance serves one dictation session.
type DeepgramTranscriber struct {
	config   *config.Config
	language string
	logger   zerolog.Logger

	client  *listenClient.WSCallback
	results chan *Result

	mu            sync.Mutex
	isActive      bool
	finals        strings.Builder
	resultsClosed bool

	upstreamClosed chan struct{}
	closeOnce      sync.Once

	ctx            context.Context
	cancel         context.CancelFunc
	circuitBreaker *resilience.CircuitBreaker
}

// NewDeepgramTranscriber creates a streaming transcriber for one session.
// languageCode is the client-requested language tag; empty falls back to
// the configured default.
func NewDeepgramTranscriber(cfg *config.Config, languageCode string, logger zerolog.Logger) *DeepgramTranscriber {
	ctx, cancel := context.WithCancel(context.Background())

	if languageCode == "" {
		languageCode = cfg.DeepgramLanguage
	}

	circuitBreaker := resilience.NewCircuitBreaker(
		"deepgram",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)

	return &DeepgramTranscriber{
		config:         cfg,
		language:       languageCode,
		logger:         logger,
		results:        make(chan *Result, 100),
		upstreamClosed: make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
		circuitBreaker: circuitBreaker,
	}
}

// Start begins the Deepgram streaming transcription session
func (d *DeepgramTranscriber) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isActive {
		return fmt.Errorf("deepgram transcriber is already active")
	}

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.config.DeepgramModel,
		Language:       d.language,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "linear16", // Raw 16-bit PCM from the browser
		Channels:       1,
		SampleRate:     d.config.AudioSampleRate,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		onMessage:              d.handleMessage,
		onClose:                d.signalUpstreamClosed,
		onError: func(errorResponse *msginterfaces.ErrorResponse) error {
			d.logger.Error().
				Str("type", errorResponse.Type).
				Str("description", errorResponse.Description).
				Msg("Deepgram error")

			d.circuitBreaker.RecordResult(false)
			observability.UpdateCircuitBreakerState("deepgram", int(d.circuitBreaker.GetState()))
			observability.IncrementCircuitBreakerFailures("deepgram")

			select {
			case <-d.ctx.Done():
				return nil
			default:
				// Connection lost mid-session, mark inactive and try to
				// re-establish in the background
				d.mu.Lock()
				d.isActive = false
				d.mu.Unlock()

				go d.attemptReconnect()
			}
			return nil
		},
	}

	client, err := listenClient.NewWSUsingCallback(
		d.ctx,
		d.config.DeepgramAPIKey,
		nil, // ClientOptions - nil uses defaults
		tOptions,
		callback,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	d.client = client
	d.isActive = true

	d.circuitBreaker.RecordResult(true)
	observability.UpdateCircuitBreakerState("deepgram", int(d.circuitBreaker.GetState()))

	d.logger.Info().
		Str("model", d.config.DeepgramModel).
		Str("language", d.language).
		Int("sample_rate", d.config.AudioSampleRate).
		Msg("Deepgram streaming transcriber started")
	return nil
}

// handleMessage processes transcription messages from Deepgram.
// The SDK invokes this serially per connection, so results enter the
// channel in upstream order.
func (d *DeepgramTranscriber) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}

	switch msg.Type {
	case "Metadata":
		d.logger.Debug().Msg("Deepgram metadata received")

	case "SpeechStarted":
		d.logger.Debug().Msg("Deepgram speech started")

	case "UtteranceEnd":
		d.logger.Debug().Msg("Deepgram utterance ended")

	case "Results", "Message":
		if len(msg.Channel.Alternatives) == 0 {
			return
		}

		alt := msg.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return
		}

		d.deliver(&Result{
			Text:       alt.Transcript,
			IsFinal:    msg.IsFinal,
			Confidence: alt.Confidence,
			StartTime:  msg.Start,
			Duration:   msg.Duration,
		})

	default:
		d.logger.Debug().Str("type", msg.Type).Msg("Deepgram: unknown message type")
	}
}

// deliver accumulates final segments and queues the result for the session
// actor. The closed-flag check and the channel send share one critical
// section with the close in Close, so a callback arriving after teardown
// can never send on the closed channel. Close cancels d.ctx before taking
// the lock, which unblocks any send already in flight here.
func (d *DeepgramTranscriber) deliver(result *Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if result.IsFinal {
		d.finals.WriteString(result.Text)
		d.finals.WriteString(" ")
	}

	if d.resultsClosed {
		return
	}

	// Block rather than drop: committed segments must not be lost and
	// the session actor drains promptly. Unblocked on teardown.
	select {
	case d.results <- result:
	case <-d.ctx.Done():
	}
}

// SendAudio sends one audio chunk to Deepgram
func (d *DeepgramTranscriber) SendAudio(audioData []byte) error {
	err := d.circuitBreaker.Call(func() error {
		d.mu.Lock()
		active := d.isActive
		client := d.client
		d.mu.Unlock()

		if !active || client == nil {
			return fmt.Errorf("deepgram transcriber is not active")
		}

		if _, err := client.Write(audioData); err != nil {
			go d.attemptReconnect()
			return fmt.Errorf("failed to send audio to Deepgram: %w", err)
		}

		return nil
	})

	observability.UpdateCircuitBreakerState("deepgram", int(d.circuitBreaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures("deepgram")
	}

	return err
}

// Results returns the channel of transcription updates
func (d *DeepgramTranscriber) Results() <-chan *Result {
	return d.results
}

// Close signals end-of-audio, waits for trailing finals bounded by ctx,
// then closes the results channel and returns the accumulated transcript.
// If the upstream never confirms the close, whatever finals arrived so far
// are returned rather than hanging.
func (d *DeepgramTranscriber) Close(ctx context.Context) (string, error) {
	d.mu.Lock()
	wasActive := d.isActive
	d.isActive = false
	client := d.client
	d.mu.Unlock()

	var err error
	if wasActive && client != nil {
		// Finish flushes buffered audio upstream; trailing final results
		// keep arriving through the callback until the Close event fires.
		client.Finish()

		select {
		case <-d.upstreamClosed:
		case <-ctx.Done():
			d.logger.Warn().Msg("Timed out waiting for Deepgram close, force-finalizing")
			err = ctx.Err()
		}
	}

	d.cancel() // Stops reconnect attempts and unblocks any pending result send

	d.mu.Lock()
	if !d.resultsClosed {
		d.resultsClosed = true
		close(d.results)
	}
	transcript := strings.TrimSpace(d.finals.String())
	d.mu.Unlock()

	return transcript, err
}

// signalUpstreamClosed marks the upstream connection as closed
func (d *DeepgramTranscriber) signalUpstreamClosed() {
	d.closeOnce.Do(func() { close(d.upstreamClosed) })
}

// attemptReconnect attempts to re-establish the Deepgram connection
func (d *DeepgramTranscriber) attemptReconnect() {
	select {
	case <-d.ctx.Done():
		return
	default:
	}

	d.mu.Lock()
	alreadyActive := d.isActive
	d.mu.Unlock()

	if alreadyActive {
		return // Already reconnected
	}

	reconnectConfig := &resilience.ReconnectConfig{
		MaxAttempts: d.config.ReconnectMaxAttempts,
		Backoff:     time.Duration(d.config.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}

	err := resilience.Reconnect(d.ctx, func() error {
		return d.Start(d.ctx)
	}, reconnectConfig)

	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to reconnect Deepgram transcriber")
	} else {
		d.logger.Info().Msg("Successfully reconnected Deepgram transcriber")
	}
}
