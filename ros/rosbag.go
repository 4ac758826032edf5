// Package ros holds the ROS message shapes the planner speaks, an in-process topic bus to carry
// them, and a reader that replays recorded bags onto that bus.
package ros

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/gobag/rosbag"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()

	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}

	return rb, nil
}

// bagTopicKey is the key gobag files a topic's messages under.
func bagTopicKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

// AllMessagesForTopic returns all messages for a specific topic in the ros bag.
func AllMessagesForTopic(rb *rosbag.RosBag, topic string) ([]map[string]interface{}, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return t == topic },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	msgs := rb.TopicsAsJSON[bagTopicKey(topic)]
	if msgs == nil {
		return nil, errors.Errorf("no messages for topic %s", topic)
	}

	all := []map[string]interface{}{}

	for {
		data, err := msgs.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		message := map[string]interface{}{}
		err = json.Unmarshal(data, &message)
		if err != nil {
			return nil, err
		}

		all = append(all, message)
	}

	return all, nil
}

// BagMessage is a decoded message and the time it was recorded.
type BagMessage struct {
	Topic string
	Stamp time.Time
	Msg   interface{}
}

// DecodeBagMessage decodes one parsed bag record, {"meta": {secs, nsecs}, "data": {...}}, into T.
func DecodeBagMessage[T any](raw map[string]interface{}) (time.Time, T, error) {
	var (
		meta Time
		msg  T
	)
	if err := decodeWeak(raw["meta"], &meta); err != nil {
		return time.Time{}, msg, errors.Wrap(err, "decoding bag record meta")
	}
	data, ok := raw["data"]
	if !ok {
		return time.Time{}, msg, errors.New("bag record has no data")
	}
	if err := decodeWeak(data, &msg); err != nil {
		return time.Time{}, msg, errors.Wrapf(err, "decoding bag record as %T", msg)
	}
	return time.Unix(meta.Secs, meta.Nsecs), msg, nil
}

func decodeWeak(input, result interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           result,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// BagTopic names a recorded topic and how to decode it.
type BagTopic struct {
	Topic  string
	Decode func(raw map[string]interface{}) (time.Time, interface{}, error)
}

func bagTopic[T any](topic string) BagTopic {
	return BagTopic{
		Topic: topic,
		Decode: func(raw map[string]interface{}) (time.Time, interface{}, error) {
			return DecodeBagMessage[T](raw)
		},
	}
}

// OdometryTopic decodes topic as nav_msgs/Odometry.
func OdometryTopic(topic string) BagTopic { return bagTopic[Odometry](topic) }

// PoseStampedTopic decodes topic as geometry_msgs/PoseStamped.
func PoseStampedTopic(topic string) BagTopic { return bagTopic[PoseStamped](topic) }

// OccupancyGridTopic decodes topic as nav_msgs/OccupancyGrid.
func OccupancyGridTopic(topic string) BagTopic { return bagTopic[OccupancyGrid](topic) }

// TwistTopic decodes topic as geometry_msgs/Twist.
func TwistTopic(topic string) BagTopic { return bagTopic[Twist](topic) }

// LoadBag decodes the given topics and merges them in recording order.
func LoadBag(rb *rosbag.RosBag, topics ...BagTopic) ([]BagMessage, error) {
	var out []BagMessage
	for _, bt := range topics {
		raws, err := AllMessagesForTopic(rb, bt.Topic)
		if err != nil {
			return nil, err
		}
		decoded, err := decodeAll(bt, raws)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded...)
	}
	sortByStamp(out)
	return out, nil
}

func decodeAll(bt BagTopic, raws []map[string]interface{}) ([]BagMessage, error) {
	out := make([]BagMessage, 0, len(raws))
	for i, raw := range raws {
		stamp, msg, err := bt.Decode(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "message %d on %s", i, bt.Topic)
		}
		out = append(out, BagMessage{Topic: bt.Topic, Stamp: stamp, Msg: msg})
	}
	return out, nil
}

func sortByStamp(msgs []BagMessage) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Stamp.Before(msgs[j].Stamp) })
}

// Replay publishes msgs onto bus, keeping their recorded spacing as measured on clk. It returns
// early with ctx's error if ctx is done.
func Replay(ctx context.Context, clk clock.Clock, bus *Bus, msgs []BagMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	start := clk.Now()
	first := msgs[0].Stamp
	for _, m := range msgs {
		if wait := m.Stamp.Sub(first) - clk.Since(start); wait > 0 {
			timer := clk.Timer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		bus.Publish(m.Topic, m.Msg)
	}
	return nil
}
