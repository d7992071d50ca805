package docs

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// TestTopics keeps the documentation index in sync with the topic files:
// every topic readme.md lists must load, and every topic file must be
// listed.
func TestTopics(t *testing.T) {
	file, err := os.Open("readme.md")
	if err != nil {
		t.Fatalf("failed to open readme.md: %v", err)
	}
	defer file.Close()

	var listed []string
	scanner := bufio.NewScanner(file)
	topicRegex := regexp.MustCompile(`^\*\s+([^:]+):.*$`)
	for scanner.Scan() {
		if matches := topicRegex.FindStringSubmatch(scanner.Text()); len(matches) > 1 {
			listed = append(listed, strings.TrimSpace(matches[1]))
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("error scanning readme.md: %v", err)
	}
	if len(listed) == 0 {
		t.Fatal("readme.md lists no topics")
	}

	for _, topic := range listed {
		if _, err := GetTopic(topic); err != nil {
			t.Errorf("failed to get topic %q: %v", topic, err)
		}
	}

	files, err := filepath.Glob("*.md")
	if err != nil {
		t.Fatalf("failed to glob *.md: %v", err)
	}
	for _, f := range files {
		topic := strings.TrimSuffix(filepath.Base(f), ".md")
		if topic == "readme" {
			continue
		}
		if !slices.Contains(listed, topic) {
			t.Errorf("topic %q is not listed in readme.md", topic)
		}
	}
}

func TestAllTopicsStartsWithReadme(t *testing.T) {
	topics, err := AllTopics()
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) == 0 || topics[0] != "readme" {
		t.Fatalf("AllTopics() = %v, want readme first", topics)
	}
	if _, err := GetTopics(topics...); err != nil {
		t.Fatalf("failed to load all topics: %v", err)
	}
}

// TestTopicStructure parses each topic and checks it opens with a level-1
// heading, so the rendered output always has a title.
func TestTopicStructure(t *testing.T) {
	files, err := filepath.Glob("*.md")
	if err != nil {
		t.Fatal(err)
	}

	for _, file := range files {
		t.Run(file, func(t *testing.T) {
			content, err := os.ReadFile(file)
			if err != nil {
				t.Fatal(err)
			}
			root := goldmark.DefaultParser().Parse(text.NewReader(content))

			first := root.FirstChild()
			heading, ok := first.(*ast.Heading)
			if !ok || heading.Level != 1 {
				t.Errorf("%s does not start with a level-1 heading", file)
			}
		})
	}
}
