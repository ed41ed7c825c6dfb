// Command quoteflow runs material pricing plans: it groups subtasks by their
// dependencies, executes each group concurrently, and proposes material
// combinations that fit a budget.
package main

func main() {
	Execute()
}
