package pusher

import (
	"evcp/internal"
	"evcp/internal/config"
	"evcp/utility"
	"fmt"
	"sync"

	"github.com/pusher/pusher-http-go/v5"
)

// trigger is the part of the pusher client used for publishing
type trigger interface {
	Trigger(channel string, eventName string, data interface{}) error
}

type outbound struct {
	channel string
	event   Event
	message Message
}

// MessagePusher implements EventHandler, events are published in the background
type MessagePusher struct {
	client  trigger
	prefix  string
	logger  internal.LogHandler
	queue   chan outbound
	done    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

func NewPusher(conf *config.Config, logger internal.LogHandler) (*MessagePusher, error) {
	if !conf.Pusher.Enabled {
		return nil, nil
	}
	if conf.Pusher.AppID == "" {
		return nil, utility.Err("missed AppID parameter in Pusher configuration")
	}
	if conf.Pusher.Key == "" {
		return nil, utility.Err("missed Key parameter in Pusher configuration")
	}
	if conf.Pusher.Secret == "" {
		return nil, utility.Err("missed Secret parameter in Pusher configuration")
	}
	client := &pusher.Client{
		AppID:   conf.Pusher.AppID,
		Key:     conf.Pusher.Key,
		Secret:  conf.Pusher.Secret,
		Cluster: conf.Pusher.Cluster,
		Secure:  true,
	}
	return newPusher(client, conf.Pusher.ChannelPrefix, logger), nil
}

func newPusher(client trigger, prefix string, logger internal.LogHandler) *MessagePusher {
	return &MessagePusher{
		client: client,
		prefix: prefix,
		logger: logger,
		queue:  make(chan outbound, 100),
		done:   make(chan struct{}),
	}
}

func (p *MessagePusher) Start() {
	p.wg.Add(1)
	go p.sendPump()
}

// Stop publishes what is already queued and returns
func (p *MessagePusher) Stop() {
	p.stopped.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}

func (p *MessagePusher) sendPump() {
	defer p.wg.Done()
	for {
		select {
		case out := <-p.queue:
			p.send(out)
		case <-p.done:
			for {
				select {
				case out := <-p.queue:
					p.send(out)
				default:
					return
				}
			}
		}
	}
}

func (p *MessagePusher) send(out outbound) {
	if err := p.client.Trigger(out.channel, string(out.event), out.message); err != nil {
		p.logger.Error(fmt.Sprintf("pusher: %s on %s", out.event, out.channel), err)
	}
}

// publish drops the event when the queue is full
func (p *MessagePusher) publish(eventName Event, event *internal.EventMessage) {
	out := outbound{
		channel: ChannelName(p.prefix, event.ChargePointId),
		event:   eventName,
		message: newMessage(event),
	}
	select {
	case p.queue <- out:
	default:
		p.logger.Warn(fmt.Sprintf("pusher: queue full, %s dropped", eventName))
	}
}

func (p *MessagePusher) OnRegistration(event *internal.EventMessage) {
	p.publish(Registration, event)
}

func (p *MessagePusher) OnStatusNotification(event *internal.EventMessage) {
	p.publish(StatusNotification, event)
}

func (p *MessagePusher) OnTransactionStart(event *internal.EventMessage) {
	p.publish(TransactionStart, event)
}

func (p *MessagePusher) OnTransactionStop(event *internal.EventMessage) {
	p.publish(TransactionStop, event)
}
