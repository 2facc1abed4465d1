package mqtt

import (
	"fmt"
	"strings"
)

// feedsSegment is the fixed middle segment of feed topics.
const feedsSegment = "feeds"

// Topic is a feed topic, canonicalised as "<account>/feeds/<feed>".
// The zero value is not a valid topic; use NewTopic or ParseTopic.
type Topic struct {
	account string
	feed    string
}

// NewTopic builds a feed topic.
//
// Both parts must be non-empty and must not contain '/', '+' or '#'.
//
// Returns:
//   - Topic: The immutable topic
//   - error: ErrInvalidTopic if either part is malformed
func NewTopic(account, feed string) (Topic, error) {
	if err := validateSegment("account", account); err != nil {
		return Topic{}, err
	}
	if err := validateSegment("feed", feed); err != nil {
		return Topic{}, err
	}
	return Topic{account: account, feed: feed}, nil
}

// ParseTopic parses a topic string of the form "<account>/feeds/<feed>".
func ParseTopic(s string) (Topic, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 || parts[1] != feedsSegment {
		return Topic{}, fmt.Errorf("%w: %q is not <account>/feeds/<feed>", ErrInvalidTopic, s)
	}
	return NewTopic(parts[0], parts[2])
}

// FeedTopic returns the topic string for account and feed without validation.
func FeedTopic(account, feed string) string {
	return account + "/" + feedsSegment + "/" + feed
}

// Account returns the namespace part of the topic.
func (t Topic) Account() string { return t.account }

// Feed returns the feed name.
func (t Topic) Feed() string { return t.feed }

// String returns the wire form of the topic.
func (t Topic) String() string {
	return FeedTopic(t.account, t.feed)
}

func validateSegment(name, v string) error {
	if v == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidTopic, name)
	}
	if strings.ContainsAny(v, "/+#") {
		return fmt.Errorf("%w: %s %q contains '/', '+' or '#'", ErrInvalidTopic, name, v)
	}
	return nil
}
