package util

import (
	"fmt"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

var Client MQTT.Client

var connectHandlersMu sync.Mutex

var connectHandlers map[string]func(MQTT.Client)

const (
	publishTimeout = 5 * time.Second
	connectWait    = 500 * time.Millisecond
)

func OnlineTopic() string {
	return Config.GetString("topic_base") + "/online"
}

var connectHandler MQTT.OnConnectHandler = func(client MQTT.Client) {
	Logger.Info().Msg("MQTT connected")
	client.Publish(OnlineTopic(), 0, true, "online")
	connectHandlersMu.Lock()
	handlers := make([]func(MQTT.Client), 0, len(connectHandlers))
	for _, handler := range connectHandlers {
		handlers = append(handlers, handler)
	}
	connectHandlersMu.Unlock()
	for _, handler := range handlers {
		handler(client)
	}
}

func RegisterMQTTConnectHook(name string, handler func(MQTT.Client)) {
	connectHandlersMu.Lock()
	defer connectHandlersMu.Unlock()
	if connectHandlers == nil {
		connectHandlers = make(map[string]func(client MQTT.Client))
	}
	if handler == nil {
		delete(connectHandlers, name)
	} else {
		connectHandlers[name] = handler
	}
}

var connectLostHandler MQTT.ConnectionLostHandler = func(client MQTT.Client, err error) {
	Logger.Warn().Msgf("MQTT connection lost: %v", err)
}

func receiver(client MQTT.Client, message MQTT.Message) {
	Logger.Warn().Msgf("Received message on %v but no handler", message.Topic())
}

// MQTTConnected reports whether the shared client is up.
func MQTTConnected() bool {
	return Client != nil && Client.IsConnected()
}

// Publish sends payload on topic through the shared client. It waits at most
// publishTimeout so a slow broker cannot hold up the caller for long.
func Publish(topic string, retained bool, payload interface{}) error {
	if !MQTTConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	token := Client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func MqttInit() error {
	if Client != nil {
		Logger.Debug().Msg("Client exists - destroying")
		if Client.IsConnected() {
			Client.Publish(OnlineTopic(), 0, true, "offline").WaitTimeout(time.Second)
			Client.Disconnect(1000)
		}
		Client = nil
	}
	if !Config.GetBool("mqtt_enabled") {
		Logger.Debug().Msg("mqtt disabled")
		return nil
	}

	opts := MQTT.NewClientOptions()
	opts.AddBroker(Config.GetString("broker_uri"))
	opts.SetClientID(Config.GetString("id_base") + "_" + GetRandString(6))
	opts.SetUsername(Config.GetString("username"))
	opts.SetPassword(Config.GetString("password"))
	opts.SetCleanSession(Config.GetBool("cleansess"))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWill(OnlineTopic(), "offline", 0, true)
	opts.OnConnectionLost = connectLostHandler
	opts.OnConnect = connectHandler
	opts.SetDefaultPublishHandler(receiver)

	Client = MQTT.NewClient(opts)

	// with ConnectRetry the token only completes once connected; a missing
	// broker costs at most connectWait here and the OnConnect hooks run
	// whenever it shows up
	token := Client.Connect()
	if token.WaitTimeout(connectWait) && token.Error() != nil {
		return fmt.Errorf("connect to broker: %w", token.Error())
	}
	return nil
}

func MqttClose() {
	if Client != nil && Client.IsConnected() {
		Client.Publish(OnlineTopic(), 0, true, "offline").WaitTimeout(time.Second)
		Client.Disconnect(1000)
	}
}
