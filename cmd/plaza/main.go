package main

import (
	"fmt"
	"os"
	"strconv"

	"plaza/internal/app"
	"plaza/internal/config"
	"plaza/internal/model"
	"plaza/internal/social"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
func newApp() (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts on stderr and reads a passphrase without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

func parsePostID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid post id %q", arg)
	}
	return id, nil
}

var rootCmd = &cobra.Command{
	Use:   "plaza",
	Short: "Terminal social network",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Database: %s\n", cfg.Database.Type)
		return nil
	},
}

// account command
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create USERNAME",
	Short: "Register a new account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, _ := cmd.Flags().GetString("password-hash")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		acct, err := a.Service().Register(args[0], hash)
		if err != nil {
			return fmt.Errorf("registering account: %w", err)
		}

		fmt.Printf("Account created: %s\n", acct.Username)
		return nil
	},
}

var accountShowCmd = &cobra.Command{
	Use:   "show USERNAME",
	Short: "View an account profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		acct, err := a.Service().Account(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Username:     %s\n", acct.Username)
		fmt.Printf("Display Name: %s\n", acct.DisplayName)
		fmt.Printf("Bio:          %s\n", acct.Bio)
		fmt.Printf("Pronouns:     %s\n", acct.Pronouns)
		fmt.Printf("Age:          %s\n", acct.Age)
		fmt.Printf("Joined:       %s\n", acct.CreatedAt.Format("2006-01-02"))
		fmt.Printf("Following:    %d\n", len(acct.Follows))
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		accounts, err := a.Service().ListAccounts()
		if err != nil {
			return err
		}

		if len(accounts) == 0 {
			fmt.Println("No accounts.")
			return nil
		}
		for _, acct := range accounts {
			name := acct.DisplayName
			if name == "" {
				name = acct.Username
			}
			fmt.Printf("%-20s  %s\n", acct.Username, name)
		}
		return nil
	},
}

var accountEditCmd = &cobra.Command{
	Use:   "edit USERNAME",
	Short: "Edit profile fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var edits social.ProfileEdits
		if cmd.Flags().Changed("display-name") {
			v, _ := cmd.Flags().GetString("display-name")
			edits.DisplayName = &v
		}
		if cmd.Flags().Changed("bio") {
			v, _ := cmd.Flags().GetString("bio")
			edits.Bio = &v
		}
		if cmd.Flags().Changed("pronouns") {
			v, _ := cmd.Flags().GetString("pronouns")
			edits.Pronouns = &v
		}
		if cmd.Flags().Changed("age") {
			v, _ := cmd.Flags().GetString("age")
			edits.Age = &v
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().UpdateProfile(args[0], edits); err != nil {
			return fmt.Errorf("updating profile: %w", err)
		}
		fmt.Println("Profile updated.")
		return nil
	},
}

// follow commands
var followCmd = &cobra.Command{
	Use:   "follow USERNAME TARGET",
	Short: "Follow an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().Follow(args[0], args[1]); err != nil {
			return fmt.Errorf("following: %w", err)
		}
		fmt.Printf("%s now follows %s\n", args[0], args[1])
		return nil
	},
}

var unfollowCmd = &cobra.Command{
	Use:   "unfollow USERNAME TARGET",
	Short: "Unfollow an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().Unfollow(args[0], args[1]); err != nil {
			return fmt.Errorf("unfollowing: %w", err)
		}
		fmt.Printf("%s no longer follows %s\n", args[0], args[1])
		return nil
	},
}

// post command
var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Manage posts",
}

var postCreateCmd = &cobra.Command{
	Use:   "create AUTHOR CONTENT",
	Short: "Publish a new post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Service().CreatePost(args[0], args[1])
		if err != nil {
			return fmt.Errorf("creating post: %w", err)
		}
		fmt.Printf("Post #%d published.\n", p.ID)
		return nil
	},
}

var postShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "View a post with its engagement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePostID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Service().Post(id)
		if err != nil {
			return err
		}

		printPost(p)
		for _, c := range p.Comments {
			fmt.Printf("    %s: %s\n", c.Author, c.Text)
		}
		return nil
	},
}

var postEditCmd = &cobra.Command{
	Use:   "edit ID CONTENT",
	Short: "Replace a post's content",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePostID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().EditPost(id, args[1]); err != nil {
			return fmt.Errorf("editing post: %w", err)
		}
		fmt.Println("Post updated.")
		return nil
	},
}

var postDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePostID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().DeletePost(id); err != nil {
			return fmt.Errorf("deleting post: %w", err)
		}
		fmt.Println("Post deleted.")
		return nil
	},
}

var postListCmd = &cobra.Command{
	Use:   "list USERNAME",
	Short: "List an account's posts, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		posts, err := a.Service().PostsBy(args[0])
		if err != nil {
			return err
		}

		if len(posts) == 0 {
			fmt.Println("No posts.")
			return nil
		}
		for _, p := range posts {
			printPost(p)
		}
		return nil
	},
}

// feed command
var feedCmd = &cobra.Command{
	Use:   "feed USERNAME",
	Short: "View the account's feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		posts, err := a.Service().Feed(args[0])
		if err != nil {
			return err
		}

		if len(posts) == 0 {
			fmt.Println("Nothing in your feed yet. Follow someone!")
			return nil
		}
		for _, p := range posts {
			printPost(p)
		}
		return nil
	},
}

// engagement commands
var heartCmd = &cobra.Command{
	Use:   "heart ID ACTOR",
	Short: "Heart or un-heart a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePostID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		on, err := a.Service().HeartToggle(id, args[1])
		if err != nil {
			return fmt.Errorf("hearting post: %w", err)
		}
		if on {
			fmt.Println("Hearted.")
		} else {
			fmt.Println("Heart removed.")
		}
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment ID AUTHOR TEXT",
	Short: "Comment on a post",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePostID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().AddComment(id, args[1], args[2]); err != nil {
			return fmt.Errorf("commenting: %w", err)
		}
		fmt.Println("Comment added.")
		return nil
	},
}

var repostCmd = &cobra.Command{
	Use:   "repost ID ACTOR",
	Short: "Repost a post to your own page",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePostID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Service().Repost(id, args[1])
		if err != nil {
			return fmt.Errorf("reposting: %w", err)
		}
		fmt.Printf("Reposted as post #%d.\n", p.ID)
		return nil
	},
}

var quoteCmd = &cobra.Command{
	Use:   "quote ID ACTOR TEXT",
	Short: "Quote a post with your own take",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePostID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Service().Quote(id, args[1], args[2])
		if err != nil {
			return fmt.Errorf("quoting: %w", err)
		}
		fmt.Printf("Quoted as post #%d.\n", p.ID)
		return nil
	},
}

// dm command
var dmCmd = &cobra.Command{
	Use:   "dm",
	Short: "Direct messages",
}

var dmSendCmd = &cobra.Command{
	Use:   "send SENDER RECIPIENT TEXT",
	Short: "Send a direct message",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Service().Send(args[0], args[1], args[2]); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
		fmt.Println("Message sent.")
		return nil
	},
}

var dmThreadCmd = &cobra.Command{
	Use:   "thread OWNER OTHER",
	Short: "View a conversation and mark it read",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		owner, other := args[0], args[1]
		msgs, err := a.Service().Thread(owner, other)
		if err != nil {
			return err
		}

		if len(msgs) == 0 {
			fmt.Println("No messages.")
			return nil
		}
		for _, m := range msgs {
			marker := " "
			if m.Recipient == owner && !m.Read {
				marker = "*"
			}
			fmt.Printf("%s %s  %s: %s\n",
				marker, m.CreatedAt.Format("2006-01-02 15:04"), m.Sender, m.Text)
		}

		if err := a.Service().MarkRead(owner, other); err != nil {
			return fmt.Errorf("marking thread read: %w", err)
		}
		return nil
	},
}

var dmInboxCmd = &cobra.Command{
	Use:   "inbox OWNER",
	Short: "List conversations, most recent first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		summaries, err := a.Service().Inbox(args[0])
		if err != nil {
			return err
		}

		if len(summaries) == 0 {
			fmt.Println("No conversations.")
			return nil
		}
		for _, s := range summaries {
			unread := ""
			if s.Unread > 0 {
				unread = fmt.Sprintf("  (%d unread)", s.Unread)
			}
			fmt.Printf("%-20s  %s%s\n",
				s.Other, s.LastMessageAt.Format("2006-01-02 15:04"), unread)
		}
		return nil
	},
}

// notifications command
var notificationsCmd = &cobra.Command{
	Use:   "notifications USERNAME",
	Short: "Show and clear pending notifications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		notes, err := a.Service().DrainNotifications(args[0])
		if err != nil {
			return err
		}

		if len(notes) == 0 {
			fmt.Println("No new notifications.")
			return nil
		}
		for _, n := range notes {
			fmt.Println(n)
		}
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage snapshot archives",
}

var snapshotInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate snapshot encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.SetupEncryption(pass); err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		fmt.Println("Encryption keys generated.")
		return nil
	},
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Archive all records to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.SnapshotCreate()
		if err != nil {
			return fmt.Errorf("creating snapshot: %w", err)
		}
		fmt.Printf("Snapshot created: %s\n", id)
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore ID",
	Short: "Restore records from a vault snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		if err := a.SnapshotRestore(args[0], pass); err != nil {
			return fmt.Errorf("restoring snapshot: %w", err)
		}
		fmt.Println("Snapshot restored.")
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vault snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		infos, err := a.SnapshotList()
		if err != nil {
			return err
		}

		if len(infos) == 0 {
			fmt.Println("No snapshots.")
			return nil
		}
		for _, info := range infos {
			fmt.Printf("%s  %s  %d bytes\n",
				info.ID, info.CreatedAt.Format("2006-01-02 15:04:05"), info.Size)
		}
		return nil
	},
}

// verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the integrity of every stored record",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		problems, err := a.Verify()
		if err != nil {
			return err
		}

		if len(problems) == 0 {
			fmt.Println("All records OK.")
			return nil
		}
		for _, p := range problems {
			fmt.Printf("CORRUPT  %-12s  %s: %v\n", p.Kind, p.Key, p.Err)
		}
		return fmt.Errorf("%d corrupt record(s)", len(problems))
	},
}

func printPost(p *model.Post) {
	fmt.Printf("#%d  %s  %s\n", p.ID, p.Author, p.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("  %s\n", p.Content)
	fmt.Printf("  %d heart(s), %d comment(s)\n", len(p.Hearts), len(p.Comments))
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	accountCmd.AddCommand(accountCreateCmd)
	accountCreateCmd.Flags().String("password-hash", "", "Pre-hashed credential from the identity provider")
	accountCmd.AddCommand(accountShowCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountEditCmd)
	accountEditCmd.Flags().String("display-name", "", "Display name")
	accountEditCmd.Flags().String("bio", "", "Profile bio")
	accountEditCmd.Flags().String("pronouns", "", "Pronouns")
	accountEditCmd.Flags().String("age", "", "Age")

	postCmd.AddCommand(postCreateCmd)
	postCmd.AddCommand(postShowCmd)
	postCmd.AddCommand(postEditCmd)
	postCmd.AddCommand(postDeleteCmd)
	postCmd.AddCommand(postListCmd)

	dmCmd.AddCommand(dmSendCmd)
	dmCmd.AddCommand(dmThreadCmd)
	dmCmd.AddCommand(dmInboxCmd)

	snapshotCmd.AddCommand(snapshotInitCmd)
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotCmd.AddCommand(snapshotListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(unfollowCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(heartCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(repostCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(dmCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(verifyCmd)
}
