package catalog

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"friday/pkg/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	maxRelatedTopics = 5
	maxHeadlines     = 5
	maxResponseBytes = 2 << 20
)

// Web holds the endpoints of the lookup capabilities.
type Web struct {
	Client *http.Client
	// SearchURL is a DuckDuckGo instant answer endpoint.
	SearchURL string
	// WeatherURL is a wttr.in endpoint; the location is appended as a path.
	WeatherURL string
	// NewsURL is a Google News RSS search endpoint.
	NewsURL string
}

// DefaultWeb returns the public endpoints.
func DefaultWeb() *Web {
	return &Web{
		Client:     &http.Client{Timeout: 20 * time.Second},
		SearchURL:  "https://api.duckduckgo.com/",
		WeatherURL: "https://wttr.in/",
		NewsURL:    "https://news.google.com/rss/search",
	}
}

func (w *Web) capabilities() []api.Capability {
	return []api.Capability{
		{
			Name:        "web_search",
			Description: "Search the web and return a short answer with related results.",
			Params:      []api.Param{stringParam("query", "What to search for")},
			Effect:      api.EffectNetwork,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				text, err := w.search(ctx, args.String("query"))
				return api.Result{Text: text}, err
			},
		},
		{
			Name:        "get_weather",
			Description: "Get the current weather and today's forecast for a place.",
			Params:      []api.Param{stringParam("location", "City or place name")},
			Effect:      api.EffectNetwork,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				text, err := w.weather(ctx, args.String("location"))
				return api.Result{Text: text}, err
			},
		},
		{
			Name:        "get_news",
			Description: "Get the latest news headlines about a topic.",
			Params:      []api.Param{stringParam("topic", "Topic to get news about")},
			Effect:      api.EffectNetwork,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				text, err := w.news(ctx, args.String("topic"))
				return api.Result{Text: text}, err
			},
		},
	}
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Answer        string     `json:"Answer"`
	Definition    string     `json:"Definition"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

func (w *Web) search(ctx context.Context, query string) (string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	body, err := w.get(ctx, "web search", w.SearchURL+"?"+q.Encode())
	if err != nil {
		return "", err
	}
	var resp ddgResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", api.Wrap(api.KindExternalUnavailable, err, "web search returned an unreadable response")
	}

	var sb strings.Builder
	if resp.Answer != "" {
		fmt.Fprintf(&sb, "Answer: %s\n", resp.Answer)
	}
	if resp.AbstractText != "" {
		if resp.Heading != "" {
			fmt.Fprintf(&sb, "%s: ", resp.Heading)
		}
		sb.WriteString(resp.AbstractText)
		if resp.AbstractURL != "" {
			fmt.Fprintf(&sb, " (%s)", resp.AbstractURL)
		}
		sb.WriteString("\n")
	} else if resp.Definition != "" {
		fmt.Fprintf(&sb, "Definition: %s\n", resp.Definition)
	}

	related := flattenTopics(resp.RelatedTopics)
	if len(related) > maxRelatedTopics {
		related = related[:maxRelatedTopics]
	}
	if len(related) > 0 {
		sb.WriteString("Related:\n")
		for _, t := range related {
			fmt.Fprintf(&sb, "- %s", t.Text)
			if t.FirstURL != "" {
				fmt.Fprintf(&sb, " (%s)", t.FirstURL)
			}
			sb.WriteString("\n")
		}
	}

	if sb.Len() == 0 {
		return "", api.Errorf(api.KindNotFound, "no results found for %q", query)
	}
	return strings.TrimSpace(fmt.Sprintf("Search results for %q:\n%s", query, sb.String())), nil
}

// flattenTopics expands grouped topics into a single list.
func flattenTopics(topics []ddgTopic) []ddgTopic {
	var out []ddgTopic
	for _, t := range topics {
		if len(t.Topics) > 0 {
			out = append(out, flattenTopics(t.Topics)...)
			continue
		}
		if t.Text != "" {
			out = append(out, t)
		}
	}
	return out
}

type wttrValue struct {
	Value string `json:"value"`
}

type wttrResponse struct {
	CurrentCondition []struct {
		TempC       string      `json:"temp_C"`
		FeelsLikeC  string      `json:"FeelsLikeC"`
		Humidity    string      `json:"humidity"`
		WindspeedKm string      `json:"windspeedKmph"`
		WeatherDesc []wttrValue `json:"weatherDesc"`
	} `json:"current_condition"`
	NearestArea []struct {
		AreaName []wttrValue `json:"areaName"`
		Country  []wttrValue `json:"country"`
	} `json:"nearest_area"`
	Weather []struct {
		MaxTempC string `json:"maxtempC"`
		MinTempC string `json:"mintempC"`
	} `json:"weather"`
}

func firstValue(vs []wttrValue) string {
	if len(vs) == 0 {
		return ""
	}
	return strings.TrimSpace(vs[0].Value)
}

func (w *Web) weather(ctx context.Context, location string) (string, error) {
	location = strings.TrimSpace(location)
	u := w.WeatherURL + url.PathEscape(location) + "?format=j1"

	body, err := w.get(ctx, "weather service", u)
	if err != nil {
		var ae *api.Error
		if errors.As(err, &ae) && ae.Kind == api.KindNotFound {
			return "", api.Errorf(api.KindNotFound, "unknown location %q", location)
		}
		return "", err
	}
	var resp wttrResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", api.Wrap(api.KindExternalUnavailable, err, "weather service returned an unreadable response")
	}
	if len(resp.CurrentCondition) == 0 {
		return "", api.Errorf(api.KindNotFound, "no weather data for %q", location)
	}

	place := location
	if len(resp.NearestArea) > 0 {
		area := resp.NearestArea[0]
		if name := firstValue(area.AreaName); name != "" {
			place = name
			if country := firstValue(area.Country); country != "" {
				place += ", " + country
			}
		}
	}

	cur := resp.CurrentCondition[0]
	var sb strings.Builder
	fmt.Fprintf(&sb, "Weather in %s: %s, %s°C (feels like %s°C), humidity %s%%, wind %s km/h",
		place, firstValue(cur.WeatherDesc), cur.TempC, cur.FeelsLikeC, cur.Humidity, cur.WindspeedKm)
	if len(resp.Weather) > 0 {
		fmt.Fprintf(&sb, "\nToday: low %s°C, high %s°C", resp.Weather[0].MinTempC, resp.Weather[0].MaxTempC)
	}
	return sb.String(), nil
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Source  string `xml:"source"`
}

func (w *Web) news(ctx context.Context, topic string) (string, error) {
	q := url.Values{}
	q.Set("q", topic)
	q.Set("hl", "en")

	body, err := w.get(ctx, "news service", w.NewsURL+"?"+q.Encode())
	if err != nil {
		return "", err
	}
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return "", api.Wrap(api.KindExternalUnavailable, err, "news service returned an unreadable feed")
	}
	items := feed.Channel.Items
	if len(items) == 0 {
		return "", api.Errorf(api.KindNotFound, "no news found about %q", topic)
	}
	if len(items) > maxHeadlines {
		items = items[:maxHeadlines]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Top news about %q:", topic)
	for i, it := range items {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, strings.TrimSpace(it.Title))
		if it.Source != "" && !strings.HasSuffix(it.Title, it.Source) {
			fmt.Fprintf(&sb, " (%s)", it.Source)
		}
		if it.Link != "" {
			fmt.Fprintf(&sb, "\n   %s", it.Link)
		}
	}
	return sb.String(), nil
}

// get performs a GET and maps transport and status failures onto the
// failure taxonomy: 404 is NotFound, other 4xx are permanent, and 5xx or
// network errors may be retried.
func (w *Web) get(ctx context.Context, service, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, api.Wrap(api.KindInvalidArgument, err, "invalid %s request", service)
	}
	req.Header.Set("User-Agent", "friday/1.0 (+curl compatible)")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, api.Wrap(api.KindExternalUnavailable, err, "%s is unreachable", service)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, api.Wrap(api.KindExternalUnavailable, err, "failed to read %s response", service)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, api.Errorf(api.KindNotFound, "%s has no result", service)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, api.Errorf(api.KindExternalUnavailable, "%s returned %s", service, resp.Status)
	case resp.StatusCode >= 400:
		return nil, api.Errorf(api.KindExternalUnavailable, "%s rejected the request: %s", service, resp.Status).AsPermanent()
	}
	return body, nil
}
