// reading_summary prints statistics over the readings stored by ut61e_logger.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/NotCoffee418/ut61e_logger/pkg/aggregator"
	"github.com/NotCoffee418/ut61e_logger/pkg/config"
	"github.com/NotCoffee418/ut61e_logger/pkg/logging"
	"github.com/NotCoffee418/ut61e_logger/pkg/readingdb"
)

func main() {
	since := flag.Duration("since", time.Hour, "summarize readings from this long ago until now")
	dbPath := flag.String("db", config.DefaultLoggerConfig().DatabasePath, "reading database")
	hourly := flag.Bool("hourly", false, "split the summary into UTC hours")
	flag.Parse()

	log := logging.New("info", "text")

	store, err := readingdb.Open(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open reading database")
	}
	defer store.Close()

	to := time.Now()
	from := to.Add(-*since)
	tf := aggregator.TimeframeAll
	if *hourly {
		tf = aggregator.TimeframeHourly
	}

	summaries, err := aggregator.SummarizeBy(store.DB(), from, to, tf)
	if err != nil {
		log.WithError(err).Fatal("Failed to summarize readings")
	}
	if len(summaries) == 0 {
		fmt.Printf("No readings since %s\n", from.Format(time.RFC3339))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "START\tFUNCTION\tUNIT\tCOUNT\tMIN\tMAX\tAVG\tOL")
	for _, s := range summaries {
		start := from
		if *hourly {
			start = s.Start
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%g\t%g\t%.4f\t%d\n",
			start.Local().Format("2006-01-02 15:04"), s.Function, s.Unit, s.Count, s.Min, s.Max, s.Avg, s.Overflows)
	}
	w.Flush()
}
