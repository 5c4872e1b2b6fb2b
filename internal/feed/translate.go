package feed

import (
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"
)

// sourceKey holds the RSS <source> title in gofeed.Item.Custom.
const sourceKey = "source"

// sourceTranslator keeps the RSS <source> element, which the default
// translator drops. Aggregators use it to name the original publisher.
type sourceTranslator struct {
	gofeed.DefaultRSSTranslator
}

func (t *sourceTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	rssFeed, ok := feed.(*rss.Feed)
	if !ok {
		return nil, fmt.Errorf("feed did not match expected type of *rss.Feed")
	}

	out, err := t.DefaultRSSTranslator.Translate(rssFeed)
	if err != nil {
		return nil, err
	}
	if len(out.Items) != len(rssFeed.Items) {
		return out, nil
	}

	for i, item := range rssFeed.Items {
		if item == nil || item.Source == nil {
			continue
		}
		title := strings.TrimSpace(item.Source.Title)
		if title == "" {
			continue
		}
		if out.Items[i].Custom == nil {
			out.Items[i].Custom = make(map[string]string, 1)
		}
		out.Items[i].Custom[sourceKey] = title
	}
	return out, nil
}
