package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"actuator-service/internal/logger"
	"actuator-service/internal/motor"
	"actuator-service/internal/types"

	"github.com/redis/go-redis/v9"
)

const (
	StatusKey = "actuator:status"
	MotorKey  = "actuator:motor"
	LedcKey   = "actuator:ledc"

	StateHash    = "actuator"
	StateChannel = "actuator"
)

// StatusCommand sets one display line or clears the whole display.
type StatusCommand struct {
	Clear bool
	Line  int
	On    bool
}

type MotorAction int

const (
	MotorSpeed MotorAction = iota
	MotorDirection
	MotorDrive
	MotorStop
)

type MotorCommand struct {
	Action    MotorAction
	Direction motor.Direction
	Speed     int
}

// LedcCommand sets a raw duty value or stops the channel.
type LedcCommand struct {
	Stop bool
	Duty int
}

type Callbacks struct {
	StatusCallback func(StatusCommand) error // "<line>:on", "<line>:off", "clear"
	MotorCallback  func(MotorCommand) error  // "speed:<n>", "direction:cw|ccw", "drive:cw|ccw:<n>", "stop"
	LedcCallback   func(LedcCommand) error   // "duty:<n>", "stop"
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(host string, port int, l *logger.Logger) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	if l == nil {
		l = logger.Discard()
	}
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		logger: l.WithTag("Redis"),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (r *RedisClient) SetCallbacks(callbacks Callbacks) {
	r.callbacks = callbacks
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		r.logger.Errorf("Redis connection failed: %v", err)
		return fmt.Errorf("redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts one BRPOP listener per command list.
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	r.wg.Add(3)
	go r.listCommandListener(StatusKey, r.handleStatusCommand)
	go r.listCommandListener(MotorKey, r.handleMotorCommand)
	go r.listCommandListener(LedcKey, r.handleLedcCommand)

	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			// Short timeout so cancellation is noticed between commands.
			result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if errors.Is(err, context.Canceled) {
					r.logger.Infof("Context cancelled, exiting %s listener", key)
					return
				}
				r.logger.Warnf("Error reading from %s list: %v", key, err)
				time.Sleep(time.Second)
				continue
			}

			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

func (r *RedisClient) handleStatusCommand(value string) error {
	if r.callbacks.StatusCallback == nil {
		return nil
	}
	cmd, err := ParseStatusCommand(value)
	if err != nil {
		return err
	}
	return r.callbacks.StatusCallback(cmd)
}

func (r *RedisClient) handleMotorCommand(value string) error {
	if r.callbacks.MotorCallback == nil {
		return nil
	}
	cmd, err := ParseMotorCommand(value)
	if err != nil {
		return err
	}
	return r.callbacks.MotorCallback(cmd)
}

func (r *RedisClient) handleLedcCommand(value string) error {
	if r.callbacks.LedcCallback == nil {
		return nil
	}
	cmd, err := ParseLedcCommand(value)
	if err != nil {
		return err
	}
	return r.callbacks.LedcCallback(cmd)
}

func ParseStatusCommand(value string) (StatusCommand, error) {
	if value == "clear" {
		return StatusCommand{Clear: true}, nil
	}
	line, state, ok := strings.Cut(value, ":")
	if !ok {
		return StatusCommand{}, fmt.Errorf("invalid status command: %s", value)
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return StatusCommand{}, fmt.Errorf("invalid status line %q: %w", line, err)
	}
	switch state {
	case "on", "off":
		return StatusCommand{Line: n, On: state == "on"}, nil
	default:
		return StatusCommand{}, fmt.Errorf("invalid status command: %s", value)
	}
}

func ParseMotorCommand(value string) (MotorCommand, error) {
	parts := strings.Split(value, ":")
	switch {
	case len(parts) == 1 && parts[0] == "stop":
		return MotorCommand{Action: MotorStop}, nil
	case len(parts) == 2 && parts[0] == "speed":
		speed, err := strconv.Atoi(parts[1])
		if err != nil {
			return MotorCommand{}, fmt.Errorf("invalid motor speed %q: %w", parts[1], err)
		}
		return MotorCommand{Action: MotorSpeed, Speed: speed}, nil
	case len(parts) == 2 && parts[0] == "direction":
		dir, err := motor.ParseDirection(parts[1])
		if err != nil {
			return MotorCommand{}, err
		}
		return MotorCommand{Action: MotorDirection, Direction: dir}, nil
	case len(parts) == 3 && parts[0] == "drive":
		dir, err := motor.ParseDirection(parts[1])
		if err != nil {
			return MotorCommand{}, err
		}
		speed, err := strconv.Atoi(parts[2])
		if err != nil {
			return MotorCommand{}, fmt.Errorf("invalid motor speed %q: %w", parts[2], err)
		}
		return MotorCommand{Action: MotorDrive, Direction: dir, Speed: speed}, nil
	default:
		return MotorCommand{}, fmt.Errorf("invalid motor command: %s", value)
	}
}

func ParseLedcCommand(value string) (LedcCommand, error) {
	if value == "stop" {
		return LedcCommand{Stop: true}, nil
	}
	duty, ok := strings.CutPrefix(value, "duty:")
	if !ok {
		return LedcCommand{}, fmt.Errorf("invalid ledc command: %s", value)
	}
	n, err := strconv.Atoi(duty)
	if err != nil {
		return LedcCommand{}, fmt.Errorf("invalid ledc duty %q: %w", duty, err)
	}
	return LedcCommand{Duty: n}, nil
}

// PublishState writes the snapshot into the actuator hash and notifies
// subscribers in one pipeline.
func (r *RedisClient) PublishState(state types.ActuatorState) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, StateHash,
		"status-word", strconv.Itoa(int(state.StatusWord)),
		"motor-direction", state.MotorDirection,
		"motor-speed", strconv.Itoa(state.MotorSpeed),
		"ledc-state", string(state.LedcState),
		"ledc-duty", strconv.Itoa(state.LedcDuty),
	)
	pipe.Publish(r.ctx, StateChannel, "state")
	if _, err := pipe.Exec(r.ctx); err != nil {
		r.logger.Warnf("Failed to publish actuator state: %v", err)
		return err
	}
	r.logger.Debugf("Published actuator state: %+v", state)
	return nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(5 * time.Second):
		r.logger.Warnf("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
