// Command ddbsessions provisions session storage and serves a small demo
// application that keeps a visit counter in a session.
package main

func main() {
	Execute()
}
