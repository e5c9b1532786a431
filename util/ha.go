package util

import (
	"encoding/json"
	"fmt"
	"strings"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/elijahnyp/light_agent/state"
)

type HAAvdvertisementAvailability struct {
	Topic               string `json:"topic"`                 // : "light_agent/online"
	PayloadAvailable    string `json:"payload_available"`     // : "online"
	PayloadNotAvailable string `json:"payload_not_available"` // : "offline"
}

type HADeviceSpec struct {
	Name        string   `json:"name"` // : "Light Agent"
	Identifiers []string `json:"ids"`  // : ["light_agent"]
}

type HAAdvertisement struct { //nolint:govet // struct layout optimized for JSON field order
	HAAvdvertisementAvailability []HAAvdvertisementAvailability `json:"availability"`
	Device                       HADeviceSpec                   `json:"device"`
	UniqueID                     string                         `json:"uniq_id"`     // "light_agent-light-101-1"
	Name                         string                         `json:"name"`        // : "Conference Room light-101-1"
	StateTopic                   string                         `json:"state_topic"` // : "light_agent/rooms/room-101/lights/light-101-1/state"
	PayloadOn                    string                         `json:"payload_on"`  // : "ON"
	PayloadOff                   string                         `json:"payload_off"`
	DeviceClass                  string                         `json:"device_class"` // : "light"
	Platform                     string                         `json:"platform"`     // "binary_sensor"
	Qos                          int                            `json:"qos"`
}

func (ha HAAdvertisement) ToJson() string {
	data, err := json.Marshal(ha)
	if err != nil {
		Logger.Error().Msgf("Error marshalling HAAdvertisement: %v", err)
		return ""
	}
	return string(data)
}

// topicSafe keeps ids usable as a single MQTT topic level.
func topicSafe(id string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_").Replace(id)
}

func LightStateTopic(roomID, lightID string) string {
	return fmt.Sprintf("%s/rooms/%s/lights/%s/state", Config.GetString("topic_base"), topicSafe(roomID), topicSafe(lightID))
}

func RoomStateTopic(roomID string) string {
	return fmt.Sprintf("%s/rooms/%s/state", Config.GetString("topic_base"), topicSafe(roomID))
}

func PowerOutageTopic() string {
	return Config.GetString("topic_base") + "/power_outage"
}

func CycleTopic() string {
	return Config.GetString("topic_base") + "/cycle"
}

func ConstructHAAdvertisement(name, uniqueID, stateTopic, deviceClass string) HAAdvertisement {
	base := Config.GetString("topic_base")
	return HAAdvertisement{
		Name:       name,
		StateTopic: stateTopic,
		PayloadOn:  string(state.ON),
		PayloadOff: string(state.OFF),
		HAAvdvertisementAvailability: []HAAvdvertisementAvailability{
			{
				Topic:               OnlineTopic(),
				PayloadAvailable:    "online",
				PayloadNotAvailable: "offline",
			},
		},
		Qos:         0,
		UniqueID:    base + "-" + topicSafe(uniqueID),
		DeviceClass: deviceClass,
		Platform:    "binary_sensor",
		Device: HADeviceSpec{
			Name:        base,
			Identifiers: []string{base},
		},
	}
}

// HAAdvertisements lists the discovery documents for a building, keyed by
// their config topic.
func HAAdvertisements(b *state.BuildingState) map[string]HAAdvertisement {
	ads := make(map[string]HAAdvertisement)
	ads["homeassistant/binary_sensor/"+Config.GetString("topic_base")+"/power_outage/config"] =
		ConstructHAAdvertisement("Power outage", "power_outage", PowerOutageTopic(), "problem")
	for _, room := range b.Rooms {
		for _, l := range room.Lights {
			topic := fmt.Sprintf("homeassistant/binary_sensor/%s/%s/config", Config.GetString("topic_base"), topicSafe(l.ID))
			ads[topic] = ConstructHAAdvertisement(room.DisplayName()+" "+l.ID, "light-"+l.ID, LightStateTopic(room.ID, l.ID), "light")
		}
	}
	return ads
}

func AdvertiseHA(b *state.BuildingState, client MQTT.Client) {
	if b == nil {
		return
	}
	for topic, ha := range HAAdvertisements(b) {
		if token := client.Publish(topic, 0, true, ha.ToJson()); token.WaitTimeout(publishTimeout) && token.Error() != nil {
			Logger.Error().Msgf("Error Publishing: %v", fmt.Errorf("%v", token.Error()))
		}
	}
}
