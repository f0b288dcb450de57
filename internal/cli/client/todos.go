package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

// Todo represents a todo item from the API.
type Todo struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	OwnerID     string  `json:"owner_id"`
}

func ListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List your todos",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), outputJSON)
		},
	}
}

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <todo_id>",
		Short:   "Get a todo by ID",
		Aliases: []string{"view"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTodoID(args[0])
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), id, outputJSON)
		},
	}
}

func AddCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a todo",
		Long: `Create a todo owned by the current user.

Examples:
  todo add "Buy milk"
  todo add "Write report" --description "quarterly numbers"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			body := map[string]any{"title": args[0]}
			if cmd.Flags().Changed("description") {
				body["description"] = description
			}
			return runAdd(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), body, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Todo description")

	return cmd
}

func UpdateCmd() *cobra.Command {
	var (
		title, description string
		clearDescription   bool
	)

	cmd := &cobra.Command{
		Use:   "update <todo_id>",
		Short: "Update a todo",
		Long: `Change the title or description of a todo. Only the flags given are sent.

Examples:
  todo update 3 --title "Buy oat milk"
  todo update 3 --clear-description`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTodoID(args[0])
			if err != nil {
				return err
			}

			body := map[string]any{}
			if cmd.Flags().Changed("title") {
				body["title"] = title
			}
			if cmd.Flags().Changed("description") {
				body["description"] = description
			}
			if clearDescription {
				body["description"] = nil
			}
			if len(body) == 0 {
				return fmt.Errorf("nothing to update (use --title, --description or --clear-description)")
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			return runUpdate(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), id, body, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().BoolVar(&clearDescription, "clear-description", false, "Remove the description")
	cmd.MarkFlagsMutuallyExclusive("description", "clear-description")

	return cmd
}

func DeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <todo_id>",
		Short:   "Delete a todo",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTodoID(args[0])
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDelete(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), id, outputJSON)
		},
	}
}

func parseTodoID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid todo id %q", raw)
	}
	return id, nil
}

func runList(out io.Writer, api *APIClient, outputJSON bool) error {
	resp, err := api.Get("/v1/todos")
	if err != nil {
		return fmt.Errorf("failed to list todos: %w", err)
	}

	var todos []Todo
	if err := json.Unmarshal(resp.Data, &todos); err != nil {
		return fmt.Errorf("failed to parse todos: %w", err)
	}

	if outputJSON {
		if todos == nil {
			todos = []Todo{}
		}
		return printJSON(out, todos)
	}

	if len(todos) == 0 {
		fmt.Fprintln(out, "No todos found")
		return nil
	}
	for _, todo := range todos {
		fmt.Fprintf(out, "%d\t%s\n", todo.ID, todo.Title)
	}
	return nil
}

func runGet(out io.Writer, api *APIClient, id int64, outputJSON bool) error {
	resp, err := api.Get(fmt.Sprintf("/v1/todos/%d", id))
	if err != nil {
		return fmt.Errorf("failed to get todo: %w", err)
	}

	todo, err := parseTodo(resp)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(out, todo)
	}
	printTodo(out, todo)
	return nil
}

func runAdd(out io.Writer, api *APIClient, body map[string]any, outputJSON bool) error {
	resp, err := api.Post("/v1/todos", body)
	if err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}

	todo, err := parseTodo(resp)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(out, todo)
	}
	fmt.Fprintf(out, "Created todo %d: %s\n", todo.ID, todo.Title)
	return nil
}

func runUpdate(out io.Writer, api *APIClient, id int64, body map[string]any, outputJSON bool) error {
	resp, err := api.Patch(fmt.Sprintf("/v1/todos/%d", id), body)
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}

	todo, err := parseTodo(resp)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(out, todo)
	}
	fmt.Fprintf(out, "Updated todo %d\n", todo.ID)
	printTodo(out, todo)
	return nil
}

func runDelete(out io.Writer, api *APIClient, id int64, outputJSON bool) error {
	if _, err := api.Delete(fmt.Sprintf("/v1/todos/%d", id)); err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	if outputJSON {
		return printJSON(out, map[string]any{"id": id, "deleted": true})
	}
	fmt.Fprintf(out, "Deleted todo %d\n", id)
	return nil
}

func parseTodo(resp *APIResponse) (*Todo, error) {
	var todo Todo
	if err := json.Unmarshal(resp.Data, &todo); err != nil {
		return nil, fmt.Errorf("failed to parse todo: %w", err)
	}
	return &todo, nil
}

func printTodo(out io.Writer, todo *Todo) {
	fmt.Fprintf(out, "ID: %d\n", todo.ID)
	fmt.Fprintf(out, "Title: %s\n", todo.Title)
	if todo.Description != nil && *todo.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", *todo.Description)
	}
}
