package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/patientsim/internal/pipeline"
)

var (
	chatPatient  string
	chatCategory string
	chatUser     string
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interview a patient from the terminal",
	Long: `Chat opens a conversation and reads questions from stdin, one per line.

Example:
  patientsim chat --patient chest-pain-01 --user "Jane Doe"
  patientsim chat --category pediatrics`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatPatient, "patient", "", "case id")
	chatCmd.Flags().StringVar(&chatCategory, "category", "", "pick a random case of this specialty")
	chatCmd.Flags().StringVar(&chatUser, "user", os.Getenv("USER"), "your display name")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	a, err := buildApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.pipeline.StartConversation(ctx, pipeline.StartRequest{
		PatientID: chatPatient,
		Category:  chatCategory,
		UserName:  chatUser,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\n", res.Reply)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		turn, err := a.pipeline.HandleTurn(ctx, res.ConversationID, line)
		if errors.Is(err, pipeline.ErrBusy) {
			fmt.Fprintln(out, "(still answering the previous question)")
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n\n", turn.Reply)
	}
	fmt.Fprintln(out)
	return scanner.Err()
}
