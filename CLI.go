package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/manningwu07/RNN/IO"
	"github.com/manningwu07/RNN/seq2seq"
)

// ChatCLI is an interactive translate loop. Greedy decoding is what the
// metrics use; here we sample with top-k/top-p so repeated queries show
// the model's alternatives.
func ChatCLI(model *seq2seq.Model) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Translator CLI. Type 'exit' to quit.")
	for {
		fmt.Print("You: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		input = strings.TrimSpace(input)
		if input == "exit" {
			break
		}
		if input == "" {
			continue
		}
		out := seq2seq.SampleDecode(model, IO.SourceTensor(input), 10, 0.9)
		fmt.Println("Bot:", out)
	}
}
