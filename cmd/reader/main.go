// Package main provides a line-mode terminal reader for Murmur threads.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"murmur/internal/client"
	"murmur/internal/models"
	"murmur/internal/thread"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8461", "Murmur API base URL")
	token := flag.String("token", os.Getenv("MURMUR_TOKEN"), "JWT bearer token")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/reader/main.go [-url URL] [-token TOKEN] <thread_id>")
		fmt.Println()
		fmt.Println("Commands once open:")
		fmt.Println("  j / k        move selection down / up")
		fmt.Println("  t            collapse or expand the selected post")
		fmt.Println("  v up|down    vote on the selected post")
		fmt.Println("  r <text>     reply to the selected post")
		fmt.Println("  e <text>     edit the selected post")
		fmt.Println("  d            delete the selected post and its replies")
		fmt.Println("  f            refresh the thread")
		fmt.Println("  q            quit")
		os.Exit(1)
	}

	rootID, err := strconv.ParseUint(flag.Arg(0), 10, 32)
	if err != nil {
		log.Fatalf("Invalid thread id %q: %v", flag.Arg(0), err)
	}

	api := client.NewAPI(*baseURL, *token)
	defer api.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sess *client.Session
	sess, err = client.OpenSession(ctx, api, uint(rootID),
		client.OnChange(func() { render(sess.View()) }),
		client.OnError(func(err error) { fmt.Printf("! %v\n", err) }),
		client.OnClosed(func() {
			fmt.Println("thread closed")
			cancel()
		}),
	)
	if err != nil {
		log.Fatalf("Failed to open thread %d: %v", rootID, err)
	}

	go sess.Run(ctx)
	sess.Do(func() { render(sess.View()) })

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch cmd {
		case "j":
			sess.Do(sess.MoveDown)
		case "k":
			sess.Do(sess.MoveUp)
		case "t":
			sess.Do(sess.ToggleSelected)
		case "v":
			dir := models.VoteDirection(rest)
			if !dir.Valid() {
				fmt.Println("usage: v up|down")
				continue
			}
			sess.Do(func() { sess.Vote(ctx, dir) })
		case "r":
			if rest == "" {
				fmt.Println("usage: r <text>")
				continue
			}
			sess.Do(func() { sess.Reply(ctx, rest) })
		case "e":
			if rest == "" {
				fmt.Println("usage: e <text>")
				continue
			}
			sess.Do(func() { sess.EditSelected(ctx, rest) })
		case "d":
			sess.Do(func() { sess.DeleteSelected(ctx) })
		case "f":
			sess.Do(func() { sess.Refresh(ctx) })
		case "q":
			sess.Do(sess.Close)
			return
		default:
			fmt.Printf("unknown command: %s\n", cmd)
		}
	}
}

// render prints the visible rows, one post per line, indented by depth.
func render(v *thread.View) {
	fmt.Println()
	selected, hasSelection := v.SelectedIndex()
	for i, id := range v.Visible() {
		node := v.Tree().Node(id)

		marker := "  "
		if hasSelection && i == selected {
			marker = "> "
		}

		indent := strings.Repeat("  ", node.Depth)

		state := ""
		if len(node.Children) > 0 && !v.Expanded(id) {
			state = fmt.Sprintf(" [+%d]", subtreeSize(v.Tree(), id)-1)
		}

		fmt.Printf("%s%s@%s (+%d/-%d)%s %s\n",
			marker, indent,
			node.Post.User.Username,
			node.Post.Upvotes, node.Post.Downvotes,
			state,
			node.Post.Content,
		)
	}
	fmt.Print("> ")
}

// subtreeSize counts a node and all of its descendants.
func subtreeSize(t *thread.Tree, id uint) int {
	n := 1
	for _, child := range t.Node(id).Children {
		n += subtreeSize(t, child)
	}
	return n
}
