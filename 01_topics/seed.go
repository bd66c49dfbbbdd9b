package topics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/synapsedaili/youtube-automation/logging"
	"github.com/synapsedaili/youtube-automation/state"
	"github.com/vartanbeno/go-reddit/v2/reddit"
)

// DefaultTopics is written on first run when no topic list exists.
var DefaultTopics = []string{
	"1960: Project Orion - The Nuclear Bomb-Powered Spaceship (USA)",
	"1960: DARPA's Early AI Research Begins (USA)",
	"1960: Atlantropa Revisited - German Engineers' Med Drain Plan (Germany)",
	"1961: Biosphere 2 Concept First Drafted (USA)",
	"1961: Soviet Alfa-Class Submarine Design Initiated (USSR)",
	"1961: General Atomics Trago - Nuclear Locomotive Proposal (USA)",
}

// eraKeywords boost a post's rank when its title mentions them
var eraKeywords = []string{
	"cold war", "soviet", "ussr", "nasa", "darpa", "nuclear", "atomic",
	"prototype", "project", "concept", "proposal", "cancelled", "canceled",
	"unbuilt", "never built", "secret", "declassified", "retro", "1950", "1960", "1970",
}

// Seed writes topics to path unless a list already exists and force is false.
// It reports whether the file was written.
func Seed(path string, topics []string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
	}
	if len(topics) == 0 {
		return false, fmt.Errorf("no topics to seed")
	}
	return true, state.WriteFileAtomic(path, []byte(strings.Join(topics, "\n")+"\n"), 0644)
}

type postLister interface {
	TopPosts(ctx context.Context, subreddit string, opts *reddit.ListPostOptions) ([]*reddit.Post, *reddit.Response, error)
}

// RedditSeeder pulls candidate topics from a subreddit's top posts.
type RedditSeeder struct {
	posts postLister
	log   *log.Logger
}

// NewRedditSeeder uses the anonymous read-only Reddit client.
func NewRedditSeeder(logger *log.Logger) (*RedditSeeder, error) {
	client, err := reddit.NewReadonlyClient()
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	return &RedditSeeder{posts: client.Subreddit, log: logging.OrDefault(logger, "topics")}, nil
}

// Topics returns up to limit post titles from the past year, best first.
func (s *RedditSeeder) Topics(ctx context.Context, subreddit string, limit int) ([]string, error) {
	s.log.Info("fetching reddit topics", "subreddit", subreddit, "limit", limit)
	posts, _, err := s.posts.TopPosts(ctx, subreddit, &reddit.ListPostOptions{
		ListOptions: reddit.ListOptions{Limit: 100},
		Time:        "year",
	})
	if err != nil {
		return nil, fmt.Errorf("reddit top posts: %w", err)
	}
	topics := rankTitles(posts, limit)
	s.log.Info("reddit topics ready", "count", len(topics))
	return topics, nil
}

func rankTitles(posts []*reddit.Post, limit int) []string {
	type scored struct {
		title string
		score int
	}
	seen := make(map[string]bool)
	var ranked []scored
	for _, p := range posts {
		if p == nil || p.NSFW || p.Stickied {
			continue
		}
		title := strings.Join(strings.Fields(p.Title), " ")
		key := strings.ToLower(title)
		if title == "" || seen[key] {
			continue
		}
		seen[key] = true
		ranked = append(ranked, scored{title: title, score: scoreTitle(title, p.Score)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var out []string
	for _, r := range ranked {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, r.title)
	}
	return out
}

func scoreTitle(title string, upvotes int) int {
	lower := strings.ToLower(title)
	score := 0
	for _, kw := range eraKeywords {
		if strings.Contains(lower, kw) {
			score += 1000
		}
	}
	// upvotes break ties between titles with the same keyword count
	return score + min(upvotes/10, 999)
}
